package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeFailed(w, http.StatusBadRequest, FieldError{Name: "body", Message: "invalid"})
		return
	}

	errs := validateNewUser(req)
	if emailValid(errs) {
		taken, err := h.users.EmailTaken(r.Context(), req.Email)
		if err != nil {
			h.fail(w, "validateNewUser", err)
			return
		}
		if taken {
			errs = append(errs, FieldError{Name: "email", Message: "exists"})
		}
	}
	if len(errs) > 0 {
		writeFailed(w, http.StatusBadRequest, errs...)
		return
	}

	if err := h.users.Register(r.Context(), req.Name, req.Email, req.Password); err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			writeFailed(w, http.StatusBadRequest, FieldError{Name: "email", Message: "exists"})
			return
		}
		h.fail(w, "registerRouter", err)
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{Status: statusOK, User: req.Email})
}

func emailValid(errs []FieldError) bool {
	for _, e := range errs {
		if e.Name == "email" {
			return false
		}
	}
	return true
}
