package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	apierrors "github.com/stwalsh4118/parcelbook/internal/errors"
)

var errNoIDs = errors.New("no property ids provided")

// parseIDs parses a comma separated id list such as "1,2,3".
// Blank entries are ignored; anything else that is not a positive integer is an error.
func parseIDs(raw string) ([]int64, error) {
	ids := []int64{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid property id %q", part)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, errNoIDs
	}
	return ids, nil
}

// splitList splits a comma separated list, dropping blanks.
func splitList(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// bindFailed writes the response for a failed ShouldBind* call.
func bindFailed(c *gin.Context, err error, message string) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		apierrors.ValidationError(c, validationErrors)
		return
	}
	apierrors.BadRequest(c, message, nil)
}
