package server

import (
	"net/http"

	"github.com/ikimina/momoledger/internal/models"
	"github.com/ikimina/momoledger/internal/service"
)

// DirectoryHandlers serves the member-directory seeding surface.
type DirectoryHandlers struct {
	directory *service.DirectoryService
}

// NewDirectoryHandlers creates the directory route handlers.
func NewDirectoryHandlers(directory *service.DirectoryService) *DirectoryHandlers {
	return &DirectoryHandlers{directory: directory}
}

type memberJSON struct {
	ID            string `json:"id"`
	InstitutionID string `json:"institution_id"`
	Name          string `json:"name"`
	Phone         string `json:"phone,omitempty"`
	GroupID       string `json:"group_id,omitempty"`
	BalanceMinor  int64  `json:"balance_minor"`
	CreatedAt     int64  `json:"created_at"`
}

func toMemberJSON(m *models.Member) *memberJSON {
	return &memberJSON{
		ID:            m.ID,
		InstitutionID: m.InstitutionID,
		Name:          m.Name,
		Phone:         m.Phone,
		GroupID:       m.GroupID,
		BalanceMinor:  m.BalanceMinor,
		CreatedAt:     m.CreatedAt,
	}
}

type groupJSON struct {
	ID            string `json:"id"`
	InstitutionID string `json:"institution_id"`
	Name          string `json:"name"`
	CreatedAt     int64  `json:"created_at"`
}

func toGroupJSON(g *models.Group) *groupJSON {
	return &groupJSON{
		ID:            g.ID,
		InstitutionID: g.InstitutionID,
		Name:          g.Name,
		CreatedAt:     g.CreatedAt,
	}
}

type createMemberRequest struct {
	Name         string `json:"name"`
	Phone        string `json:"phone,omitempty"`
	GroupID      string `json:"group_id,omitempty"`
	BalanceMinor int64  `json:"balance_minor,omitempty"`
}

func (h *DirectoryHandlers) handleCreateMember(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOr401(w, r)
	if !ok {
		return
	}
	var req createMemberRequest
	if !decodeBody(w, r, &req) {
		return
	}

	member, err := h.directory.CreateMember(r.Context(), scope, req.Name, req.Phone, req.GroupID, req.BalanceMinor)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toMemberJSON(member))
}

func (h *DirectoryHandlers) handleGetMember(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOr401(w, r)
	if !ok {
		return
	}
	member, err := h.directory.GetMember(r.Context(), scope, r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toMemberJSON(member))
}

type createGroupRequest struct {
	Name string `json:"name"`
}

func (h *DirectoryHandlers) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOr401(w, r)
	if !ok {
		return
	}
	var req createGroupRequest
	if !decodeBody(w, r, &req) {
		return
	}

	group, err := h.directory.CreateGroup(r.Context(), scope, req.Name)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toGroupJSON(group))
}

func (h *DirectoryHandlers) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOr401(w, r)
	if !ok {
		return
	}
	group, err := h.directory.GetGroup(r.Context(), scope, r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toGroupJSON(group))
}
