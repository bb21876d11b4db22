package ez

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func init() {
	// 校验错误里用 json 字段名
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
				if name != "" && name != "-" {
					return name
				}
			}
			return ""
		})
	}
}

// bindMessage 把绑定/校验错误收敛成固定文案，原始错误只进日志
func bindMessage(err error) string {
	var (
		verrs   validator.ValidationErrors
		typeErr *json.UnmarshalTypeError
		synErr  *json.SyntaxError
		numErr  *strconv.NumError
		tooBig  *http.MaxBytesError
	)
	switch {
	case errors.As(err, &verrs) && len(verrs) > 0:
		fe := verrs[0]
		if fe.Tag() == "required" {
			return "missing field: " + fe.Field()
		}
		return "invalid value for field: " + fe.Field()
	case errors.As(err, &tooBig):
		return "request body too large"
	case errors.As(err, &typeErr) && typeErr.Field != "":
		return "wrong type for field: " + typeErr.Field
	case errors.As(err, &synErr), errors.Is(err, io.ErrUnexpectedEOF):
		return "malformed JSON body"
	case errors.Is(err, io.EOF):
		return "empty request body"
	case strings.HasPrefix(err.Error(), "json: unknown field"):
		return "unknown field in request body"
	case errors.As(err, &numErr):
		return "invalid query parameter"
	default:
		return "invalid request"
	}
}
