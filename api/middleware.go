package api

import (
	"compress/gzip"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/labstack/echo/v4"

	"todo-api/domain"
)

const userContextKey = "auth.user"

// RequireAuth resolves the bearer token of every request into a user and
// rejects the request with 401 when that fails.
func (h *handlers) RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, err := h.accounts.UserFromAuthHeader(c.Request().Header)
			if err != nil {
				return h.fail(c, err)
			}
			c.Set(userContextKey, user)
			return next(c)
		}
	}
}

func currentUser(c echo.Context) (domain.User, bool) {
	u, ok := c.Get(userContextKey).(domain.User)
	return u, ok
}

// InflateRequestBody swaps a gzip or deflate encoded request body for its
// decoded stream. Other encodings pass through untouched; a body that does not
// decode is rejected with 400.
func (h *handlers) InflateRequestBody() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			coding := requestCoding(req.Header.Get(echo.HeaderContentEncoding))
			if coding == "" {
				return next(c)
			}
			body, err := inflate(coding, req.Body)
			if err != nil {
				_ = req.Body.Close()
				return h.fail(c, fmt.Errorf("%w: %s: %v", errInvalidBody, coding, err))
			}
			req.Body = body
			req.ContentLength = -1
			req.Header.Del(echo.HeaderContentEncoding)
			req.Header.Del(echo.HeaderContentLength)
			return next(c)
		}
	}
}

// requestCoding returns the first supported coding named in a
// Content-Encoding header.
func requestCoding(header string) string {
	for _, token := range strings.Split(header, ",") {
		switch coding := strings.ToLower(strings.TrimSpace(token)); coding {
		case "gzip", "x-gzip":
			return "gzip"
		case "deflate":
			return coding
		}
	}
	return ""
}

func inflate(coding string, body io.ReadCloser) (io.ReadCloser, error) {
	var (
		r   io.ReadCloser
		err error
	)
	if coding == "gzip" {
		r, err = gzip.NewReader(body)
	} else {
		r, err = zlib.NewReader(body)
	}
	if err != nil {
		return nil, err
	}
	return &inflatedBody{ReadCloser: r, raw: body}, nil
}

// inflatedBody closes the decoder and the underlying request body.
type inflatedBody struct {
	io.ReadCloser
	raw io.Closer
}

func (b *inflatedBody) Close() error {
	return errors.Join(b.ReadCloser.Close(), b.raw.Close())
}
