package markdown

import (
	"net/http"

	"github.com/flowershow/contentsync/internal/common/apperrors"
)

var (
	ErrParse                   apperrors.Error = apperrors.New("error parsing markdown").SetStatusCode(http.StatusUnprocessableEntity).SetExpandError(true)
	ErrUnterminatedFrontMatter apperrors.Error = ErrParse.New("front matter block is not closed")
	ErrInvalidFrontMatter      apperrors.Error = ErrParse.New("front matter is not a YAML mapping")
)
