package posts

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// CreateRequest is the JSON body of POST /posts.
// CategoryID accepts a JSON number or a numeric string; decode with UseNumber.
type CreateRequest struct {
	Title      string      `json:"title" validate:"required,max=255"`
	Content    string      `json:"content" validate:"required,max=5000"`
	CategoryID interface{} `json:"categoryId" validate:"integer"`
	Img        *string     `json:"img" validate:"required,min=1"`
}

// UpdateRequest is the JSON body of PATCH /posts/{postId}.
// Title and content may be empty on update; img is optional.
type UpdateRequest struct {
	Title      string      `json:"title" validate:"max=255"`
	Content    string      `json:"content" validate:"max=5000"`
	CategoryID interface{} `json:"categoryId" validate:"integer"`
	Img        *string     `json:"img"`
}

// CreateInput is a validated CreateRequest
type CreateInput struct {
	Title      string
	Content    string
	CategoryID int64
	Image      string
}

// UpdateInput is a validated UpdateRequest plus the path id.
// An empty Image leaves the stored image untouched.
type UpdateInput struct {
	PostID     int64
	Title      string
	Content    string
	CategoryID int64
	Image      string
}

// FieldError describes one rejected request field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is the result of a validation step; empty means the input is valid
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, fe := range v {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Validator runs the declarative field rules for post requests
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report json names ("categoryId") rather than Go names ("CategoryID")
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// integer accepts json.Number / numeric strings holding a base-10 integer
	_ = v.RegisterValidation("integer", func(fl validator.FieldLevel) bool {
		_, ok := parseInteger(fl.Field().Interface())
		return ok
	})

	return &Validator{validate: v}
}

// ValidateCreate trims and checks a create request
func (v *Validator) ValidateCreate(req CreateRequest) (CreateInput, ValidationErrors) {
	req.Title = strings.TrimSpace(req.Title)
	req.Content = strings.TrimSpace(req.Content)

	if errs := v.check(&req); len(errs) > 0 {
		return CreateInput{}, errs
	}

	categoryID, _ := parseInteger(req.CategoryID)
	return CreateInput{
		Title:      req.Title,
		Content:    req.Content,
		CategoryID: categoryID,
		Image:      *req.Img,
	}, nil
}

// ValidateUpdate checks the path id and trims and checks an update request
func (v *Validator) ValidateUpdate(rawPostID string, req UpdateRequest) (UpdateInput, ValidationErrors) {
	req.Title = strings.TrimSpace(req.Title)
	req.Content = strings.TrimSpace(req.Content)

	postID, errs := ParsePostID(rawPostID)
	errs = append(errs, v.check(&req)...)
	if len(errs) > 0 {
		return UpdateInput{}, errs
	}

	categoryID, _ := parseInteger(req.CategoryID)
	in := UpdateInput{
		PostID:     postID,
		Title:      req.Title,
		Content:    req.Content,
		CategoryID: categoryID,
	}
	if req.Img != nil {
		in.Image = *req.Img
	}
	return in, nil
}

// ParsePostID validates a postId path parameter
func ParsePostID(raw string) (int64, ValidationErrors) {
	id, ok := parseInteger(raw)
	if !ok {
		return 0, ValidationErrors{{Field: "postId", Message: "postId must be an integer"}}
	}
	return id, nil
}

func (v *Validator) check(req interface{}) ValidationErrors {
	err := v.validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return ValidationErrors{{Field: "body", Message: err.Error()}}
	}

	out := make(ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s must not be empty", fe.Field())
	case "min":
		if fe.Param() == "1" {
			return fmt.Sprintf("%s must not be empty", fe.Field())
		}
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "integer":
		return fmt.Sprintf("%s must be an integer", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

func parseInteger(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := strconv.ParseInt(string(n), 10, 64)
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}
