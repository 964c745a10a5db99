package posts

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fieldNames(errs ValidationErrors) []string {
	names := make([]string, 0, len(errs))
	for _, fe := range errs {
		names = append(names, fe.Field)
	}
	return names
}

func TestValidateCreate(t *testing.T) {
	v := NewValidator()

	in, errs := v.ValidateCreate(CreateRequest{
		Title:      "  Hi  ",
		Content:    "Body\n",
		CategoryID: json.Number("1"),
		Img:        strPtr("data:image/png;base64,AAAA"),
	})
	require.Empty(t, errs)
	assert.Equal(t, CreateInput{Title: "Hi", Content: "Body", CategoryID: 1, Image: "data:image/png;base64,AAAA"}, in)

	// numeric strings are accepted
	in, errs = v.ValidateCreate(CreateRequest{Title: "a", Content: "b", CategoryID: "3", Img: strPtr("x")})
	require.Empty(t, errs)
	assert.Equal(t, int64(3), in.CategoryID)
}

func TestValidateCreateRejects(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name   string
		req    CreateRequest
		fields []string
	}{
		{
			name:   "blank title",
			req:    CreateRequest{Title: "   ", Content: "b", CategoryID: json.Number("1"), Img: strPtr("x")},
			fields: []string{"title"},
		},
		{
			name:   "title too long",
			req:    CreateRequest{Title: strings.Repeat("t", 256), Content: "b", CategoryID: json.Number("1"), Img: strPtr("x")},
			fields: []string{"title"},
		},
		{
			name:   "content too long",
			req:    CreateRequest{Title: "a", Content: strings.Repeat("c", 5001), CategoryID: json.Number("1"), Img: strPtr("x")},
			fields: []string{"content"},
		},
		{
			name:   "fractional category",
			req:    CreateRequest{Title: "a", Content: "b", CategoryID: json.Number("1.5"), Img: strPtr("x")},
			fields: []string{"categoryId"},
		},
		{
			name:   "missing category",
			req:    CreateRequest{Title: "a", Content: "b", Img: strPtr("x")},
			fields: []string{"categoryId"},
		},
		{
			name:   "missing img",
			req:    CreateRequest{Title: "a", Content: "b", CategoryID: json.Number("1")},
			fields: []string{"img"},
		},
		{
			name:   "empty img",
			req:    CreateRequest{Title: "a", Content: "b", CategoryID: json.Number("1"), Img: strPtr("")},
			fields: []string{"img"},
		},
		{
			name:   "everything wrong",
			req:    CreateRequest{CategoryID: "abc"},
			fields: []string{"title", "content", "categoryId", "img"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errs := v.ValidateCreate(tt.req)
			assert.Equal(t, tt.fields, fieldNames(errs))
		})
	}
}

func TestValidateCreateMessages(t *testing.T) {
	v := NewValidator()

	_, errs := v.ValidateCreate(CreateRequest{Title: strings.Repeat("t", 300), CategoryID: "x", Img: strPtr("x")})
	require.Len(t, errs, 3)
	assert.Equal(t, "title must be at most 255 characters", errs[0].Message)
	assert.Equal(t, "content must not be empty", errs[1].Message)
	assert.Equal(t, "categoryId must be an integer", errs[2].Message)
	assert.Contains(t, errs.Error(), "title: title must be at most 255 characters")

	_, errs = v.ValidateCreate(CreateRequest{Title: "a", Content: "b", CategoryID: json.Number("1"), Img: strPtr("")})
	require.Len(t, errs, 1)
	assert.Equal(t, "img must not be empty", errs[0].Message)
}

func TestValidateUpdate(t *testing.T) {
	v := NewValidator()

	in, errs := v.ValidateUpdate("5", UpdateRequest{Title: " T ", Content: "C", CategoryID: json.Number("2")})
	require.Empty(t, errs)
	assert.Equal(t, UpdateInput{PostID: 5, Title: "T", Content: "C", CategoryID: 2}, in)

	// title and content may be empty on update
	in, errs = v.ValidateUpdate("5", UpdateRequest{CategoryID: json.Number("2"), Img: strPtr("new")})
	require.Empty(t, errs)
	assert.Equal(t, "", in.Title)
	assert.Equal(t, "new", in.Image)

	_, errs = v.ValidateUpdate("five", UpdateRequest{CategoryID: json.Number("2")})
	assert.Equal(t, []string{"postId"}, fieldNames(errs))

	_, errs = v.ValidateUpdate("five", UpdateRequest{Title: strings.Repeat("t", 256)})
	assert.Equal(t, []string{"postId", "title", "categoryId"}, fieldNames(errs))
}

func TestParsePostID(t *testing.T) {
	id, errs := ParsePostID("42")
	assert.Empty(t, errs)
	assert.Equal(t, int64(42), id)

	for _, raw := range []string{"", "abc", "4.2", "1e3"} {
		_, errs := ParsePostID(raw)
		assert.Len(t, errs, 1, raw)
	}
}

func TestTruncateContent(t *testing.T) {
	assert.Equal(t, "short", TruncateContent("short", SummaryContentLength))
	assert.Equal(t, "ééé", TruncateContent("éééé", 3))
}
