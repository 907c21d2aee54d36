package http

import (
	"net/http"

	"kanakku/internal/core"
)

type signInRequest struct {
	InviteFamilyID string `json:"inviteFamilyId"`
}

type joinFamilyRequest struct {
	InviteCode string `json:"inviteCode"`
}

type createFamilyResponse struct {
	Family familyView `json:"family"`
	User   userView   `json:"user"`
}

// handleSignIn upserts the user document of the proxy-asserted identity. The
// body is optional and only carries an invite link's family id.
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	uid, email, err := identity(r, s.deps.AuthProxySecret)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req signInRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}

	user, err := s.deps.Families.SignIn(r.Context(), uid, email, sanitizeInput(req.InviteFamilyID))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserView(user))
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, actor core.Actor) {
	writeJSON(w, http.StatusOK, userView{UID: actor.UID, Email: actor.Email, FamilyID: actor.FamilyID, Role: string(actor.Role)})
}

func (s *Server) handleCreateFamily(w http.ResponseWriter, r *http.Request, actor core.Actor) {
	fam, user, err := s.deps.Families.CreateFamily(r.Context(), actor.UID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createFamilyResponse{
		Family: familyView{ID: fam.ID, OwnerID: fam.OwnerID, InviteCode: fam.InviteCode},
		User:   newUserView(user),
	})
}

func (s *Server) handleFamily(w http.ResponseWriter, r *http.Request, actor core.Actor) {
	fam, err := s.deps.Families.Family(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, familyView{ID: fam.ID, OwnerID: fam.OwnerID, InviteCode: fam.InviteCode})
}

func (s *Server) handleJoinFamily(w http.ResponseWriter, r *http.Request, actor core.Actor) {
	var req joinFamilyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := s.deps.Families.JoinFamily(r.Context(), actor.UID, sanitizeInput(req.InviteCode))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserView(user))
}

func (s *Server) handleRotateInviteCode(w http.ResponseWriter, r *http.Request, actor core.Actor) {
	fam, err := s.deps.Families.RotateInviteCode(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, familyView{ID: fam.ID, OwnerID: fam.OwnerID, InviteCode: fam.InviteCode})
}

func (s *Server) handleMembers(w http.ResponseWriter, r *http.Request, actor core.Actor) {
	users, err := s.deps.Families.Members(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]userView, 0, len(users))
	for _, u := range users {
		out = append(out, newUserView(u))
	}
	writeJSON(w, http.StatusOK, out)
}
