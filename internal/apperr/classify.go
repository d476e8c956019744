package apperr

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Classify maps a low-level failure onto the operational taxonomy. Errors
// that already carry a classification pass through unchanged; anything not
// pattern-matched becomes Unexpected.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		return e
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		return &Error{
			Status:      he.Code,
			Message:     fmt.Sprint(he.Message),
			Err:         he.Internal,
			Operational: true,
		}
	}

	// ObjectIDFromHex reports a wrong-length id as ErrInvalidHex but leaks
	// the encoding/hex errors for non-hex bytes; both mean the same thing
	// to a caller.
	var badByte hex.InvalidByteError
	switch {
	case errors.Is(err, primitive.ErrInvalidHex),
		errors.Is(err, hex.ErrLength),
		errors.As(err, &badByte):
		return InvalidField("id", "not a valid object id")
	case errors.Is(err, mongo.ErrNoDocuments):
		return NotFound("no document found")
	case mongo.IsDuplicateKeyError(err):
		return Duplicate("")
	case errors.Is(err, jwt.ErrTokenExpired):
		return TokenExpired("Your token has expired, please login again")
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrSignatureInvalid):
		return TokenInvalid("Invalid token. Please login again")
	}

	return Unexpected(err)
}

// Handler builds the echo HTTPErrorHandler for the given runtime mode.
// Development responses include the underlying cause; production responses
// expose operational messages only and log everything else server-side.
func Handler(env string) echo.HTTPErrorHandler {
	dev := env != "production"
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		e := Classify(err)

		body := echo.Map{
			"status":  e.StatusLabel(),
			"message": e.Message,
		}
		if dev && e.Err != nil {
			body["error"] = e.Err.Error()
		}
		if !dev && !e.Operational {
			log.Printf("unexpected error on %s %s: %v", c.Request().Method, c.Request().URL.Path, err)
			body["status"] = "error"
			body["message"] = "something went wrong"
			e = &Error{Status: http.StatusInternalServerError}
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(e.Status)
			return
		}
		_ = c.JSON(e.Status, body)
	}
}
