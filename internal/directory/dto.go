package directory

import "time"

// CreateInvitationInput is the operator's request to invite a new user.
type CreateInvitationInput struct {
	Email     string `json:"email" validate:"required,email"`
	CompanyID string `json:"company_id" validate:"required"`
	Role      string `json:"role" validate:"required"`
}

type userResponse struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	CompanyID string     `json:"company_id"`
	Role      string     `json:"role"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

type invitationResponse struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	CompanyID string     `json:"company_id"`
	Role      string     `json:"role"`
	Status    string     `json:"status"`
	InvitedBy string     `json:"invited_by"`
	CreatedAt time.Time  `json:"created_at"`
	ResentAt  *time.Time `json:"resent_at,omitempty"`
	ExpiresAt time.Time  `json:"expires_at"`
}

type rowResponse struct {
	Kind       string              `json:"kind"`
	User       *userResponse       `json:"user,omitempty"`
	Invitation *invitationResponse `json:"invitation,omitempty"`
}

type collectionResponse struct {
	Key             string        `json:"key"`
	Items           []rowResponse `json:"items"`
	Total           int           `json:"total"`
	LastConfirmedAt *time.Time    `json:"last_confirmed_at,omitempty"`
}

func toCollectionResponse(col Collection) collectionResponse {
	resp := collectionResponse{
		Key:             col.Key,
		Items:           make([]rowResponse, 0, len(col.Items)),
		Total:           col.Total,
		LastConfirmedAt: col.LastConfirmedAt,
	}
	for _, row := range col.Items {
		resp.Items = append(resp.Items, toRowResponse(row))
	}
	return resp
}

func toRowResponse(row Row) rowResponse {
	out := rowResponse{Kind: string(row.Kind)}
	if row.User != nil {
		out.User = &userResponse{
			ID:        row.User.ID,
			Email:     row.User.Email,
			Name:      row.User.Name,
			CompanyID: row.User.CompanyID,
			Role:      row.User.Role,
			Status:    string(row.User.Status),
			CreatedAt: row.User.CreatedAt,
			DeletedAt: row.User.DeletedAt,
		}
	}
	if row.Invitation != nil {
		out.Invitation = toInvitationResponse(*row.Invitation)
	}
	return out
}

func toInvitationResponse(inv Invitation) *invitationResponse {
	return &invitationResponse{
		ID:        inv.ID,
		Email:     inv.Email,
		CompanyID: inv.CompanyID,
		Role:      inv.Role,
		Status:    string(inv.Status),
		InvitedBy: inv.InvitedBy,
		CreatedAt: inv.CreatedAt,
		ResentAt:  inv.ResentAt,
		ExpiresAt: inv.ExpiresAt,
	}
}
