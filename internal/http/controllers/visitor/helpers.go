package visitor

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	dto "github.com/dropDatabas3/hostelgate/internal/http/dto/visitor"
	httperrors "github.com/dropDatabas3/hostelgate/internal/http/errors"
	mw "github.com/dropDatabas3/hostelgate/internal/http/middlewares"
	jwtx "github.com/dropDatabas3/hostelgate/internal/jwt"
)

const maxBodyBytes = 64 << 10

// readJSON decodifica el body con límite de tamaño. Un body vacío deja v en cero
// y la validación posterior reporta MISSING_FIELDS.
func readJSON(w http.ResponseWriter, r *http.Request, v any) *httperrors.AppError {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return httperrors.ErrBodyTooLarge
		}
		return httperrors.ErrInvalidJSON
	}
	return nil
}

// validate aplica los tags del DTO y traduce a MISSING_FIELDS / INVALID_PARAMETER.
func validate(v any) *httperrors.AppError {
	err := dto.Validate(v)
	if err == nil {
		return nil
	}
	var fe *dto.FieldError
	if !errors.As(err, &fe) {
		return httperrors.ErrInvalidParameter.WithDetail(err.Error())
	}
	if len(fe.Missing) > 0 {
		return httperrors.ErrMissingFields.WithDetail("missing: " + strings.Join(fe.Missing, ", "))
	}
	return httperrors.ErrInvalidParameter.WithDetail("invalid: " + strings.Join(fe.Invalid, ", "))
}

// actorID resuelve el id del actor del body contra el token.
// Todo rol que no sea admin queda atado a su sub: el id del body es opcional
// (default: sub) y debe coincidir. admin puede actuar en nombre de otro; sin
// claims (rutas sin auth) se usa el body.
func actorID(r *http.Request, bodyID, role string) (string, *httperrors.AppError) {
	bodyID = strings.TrimSpace(bodyID)
	cl := mw.GetClaims(r.Context())
	if cl == nil || cl.Role == jwtx.RoleAdmin {
		return bodyID, nil
	}
	if bodyID == "" {
		return cl.Subject, nil
	}
	if bodyID != cl.Subject {
		return "", httperrors.ErrPermissionDenied.WithDetail(role + " id does not match token")
	}
	return bodyID, nil
}

// studentID es el residente autenticado.
func studentID(r *http.Request) (string, *httperrors.AppError) {
	cl := mw.GetClaims(r.Context())
	if cl == nil {
		return "", httperrors.ErrUnauthorized
	}
	if cl.Role != jwtx.RoleStudent {
		return "", httperrors.ErrPermissionDenied.WithDetail("student token required")
	}
	return cl.Subject, nil
}

// queryLimit parsea ?limit=; vacío = 0 (default del service).
func queryLimit(r *http.Request) (int, *httperrors.AppError) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, httperrors.ErrInvalidParameter.WithDetail("limit must be a positive integer")
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
