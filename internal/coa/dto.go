package coa

import "time"

// CreateNodeRequest is the JSON payload for node creation.
type CreateNodeRequest struct {
	ParentID *int64  `json:"parent_id"`
	Code     string  `json:"code" validate:"required,max=16"`
	Title    string  `json:"title" validate:"required,max=200"`
	Kind     string  `json:"kind" validate:"required,oneof=GROUP GENERAL SPECIFIC"`
	Nature   *string `json:"nature" validate:"omitempty,oneof=DEBIT CREDIT"`
}

// UpdateNodeRequest is the JSON payload for node updates.
type UpdateNodeRequest struct {
	ParentID *int64  `json:"parent_id"`
	Code     string  `json:"code" validate:"required,max=16"`
	Title    string  `json:"title" validate:"required,max=200"`
	IsActive bool    `json:"is_active"`
	Nature   *string `json:"nature" validate:"omitempty,oneof=DEBIT CREDIT"`
}

// DetailRequest is the JSON payload for detail creation and updates.
type DetailRequest struct {
	Code     string `json:"code" validate:"required,len=4,numeric"`
	Title    string `json:"title" validate:"required,max=200"`
	IsActive bool   `json:"is_active"`
}

// LinkRequest attaches a detail to a node.
type LinkRequest struct {
	NodeID    int64 `json:"node_id" validate:"required"`
	IsPrimary bool  `json:"is_primary"`
	Position  int   `json:"position" validate:"gte=0"`
}

// NodeResponse is the JSON shape of a node.
type NodeResponse struct {
	ID        int64     `json:"id"`
	ParentID  *int64    `json:"parent_id,omitempty"`
	Code      string    `json:"code"`
	Title     string    `json:"title"`
	Kind      string    `json:"kind"`
	IsActive  bool      `json:"is_active"`
	Nature    *string   `json:"nature,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DetailResponse is the JSON shape of a detail.
type DetailResponse struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Title     string    `json:"title"`
	Kind      string    `json:"kind"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toNodeResponse(n CodeNode) NodeResponse {
	var nature *string
	if n.Nature != nil {
		v := string(*n.Nature)
		nature = &v
	}
	return NodeResponse{
		ID:        n.ID,
		ParentID:  n.ParentID,
		Code:      n.Code,
		Title:     n.Title,
		Kind:      string(n.Kind),
		IsActive:  n.IsActive,
		Nature:    nature,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

func toDetailResponse(d Detail) DetailResponse {
	return DetailResponse{
		ID:        d.ID,
		Code:      d.Code,
		Title:     d.Title,
		Kind:      string(d.Kind),
		IsActive:  d.IsActive,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func natureFromString(s *string) *Nature {
	if s == nil {
		return nil
	}
	n := Nature(*s)
	return &n
}
