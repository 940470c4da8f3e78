// Package coreapi wraps interactions with the platform core API, the
// remote boundary behind every directory mutation and privileged session.
// Audit entries for those effects are written by the core API inside the
// same request that performs them.
package coreapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// RemoteError carries the core API's status and message text. The message
// is surfaced verbatim to operators when a mutation rolls back.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("core api returned status %d", e.Status)
}

// Client talks to the platform core API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient constructs a new client.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Ping checks if the core API is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// ListUsers fetches users matching the search term.
func (c *Client) ListUsers(ctx context.Context, search string, offset, limit int) (UserPage, error) {
	var page UserPage
	q := url.Values{}
	if search != "" {
		q.Set("search", search)
	}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	err := c.do(ctx, http.MethodGet, "/admin/users?"+q.Encode(), nil, &page)
	return page, err
}

// ListInvitations fetches outstanding invitations.
func (c *Client) ListInvitations(ctx context.Context, offset, limit int) (InvitationPage, error) {
	var page InvitationPage
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	err := c.do(ctx, http.MethodGet, "/admin/invitations?"+q.Encode(), nil, &page)
	return page, err
}

// UpdateUser patches a user. Suspension toggles go through here as status
// changes. The idempotency key lets the core API drop a duplicate delivery
// of the same edit.
func (c *Client) UpdateUser(ctx context.Context, userID string, patch UserPatch, idempotencyKey string) error {
	return c.doKeyed(ctx, http.MethodPatch, "/admin/users/"+url.PathEscape(userID), idempotencyKey, patch, nil)
}

// DeleteUser soft-deletes a user.
func (c *Client) DeleteUser(ctx context.Context, userID, idempotencyKey string) error {
	return c.doKeyed(ctx, http.MethodDelete, "/admin/users/"+url.PathEscape(userID), idempotencyKey, nil, nil)
}

// RestoreUser reverses a soft delete.
func (c *Client) RestoreUser(ctx context.Context, userID, idempotencyKey string) error {
	return c.doKeyed(ctx, http.MethodPost, "/admin/users/"+url.PathEscape(userID)+"/restore", idempotencyKey, nil, nil)
}

// CreateInvitation issues a new invitation and returns it with its
// server-assigned identity.
func (c *Client) CreateInvitation(ctx context.Context, req CreateInvitationRequest) (InvitationRecord, error) {
	var created InvitationRecord
	err := c.do(ctx, http.MethodPost, "/admin/invitations", req, &created)
	return created, err
}

// CancelInvitation cancels a pending invitation.
func (c *Client) CancelInvitation(ctx context.Context, invitationID, idempotencyKey string) error {
	return c.doKeyed(ctx, http.MethodPost, "/admin/invitations/"+url.PathEscape(invitationID)+"/cancel", idempotencyKey, nil, nil)
}

// ResendInvitation re-sends the invitation email.
func (c *Client) ResendInvitation(ctx context.Context, invitationID, idempotencyKey string) error {
	return c.doKeyed(ctx, http.MethodPost, "/admin/invitations/"+url.PathEscape(invitationID)+"/resend", idempotencyKey, nil, nil)
}

// DeleteInvitation removes an invitation entirely.
func (c *Client) DeleteInvitation(ctx context.Context, invitationID, idempotencyKey string) error {
	return c.doKeyed(ctx, http.MethodDelete, "/admin/invitations/"+url.PathEscape(invitationID), idempotencyKey, nil, nil)
}

type startImpersonationRequest struct {
	TargetUserID string `json:"target_user_id"`
	Reason       string `json:"reason"`
}

// StartImpersonation asks the core API to open a privileged session. The
// grant, including the server-recorded start time, comes back only on
// success.
func (c *Client) StartImpersonation(ctx context.Context, targetUserID, reason string) (ImpersonationGrant, error) {
	var grant ImpersonationGrant
	err := c.do(ctx, http.MethodPost, "/admin/impersonation", startImpersonationRequest{
		TargetUserID: targetUserID,
		Reason:       reason,
	}, &grant)
	return grant, err
}

type endImpersonationRequest struct {
	EndedReason string `json:"ended_reason"`
}

// EndImpersonation closes a privileged session with the given reason
// ("manual" or "expired").
func (c *Client) EndImpersonation(ctx context.Context, sessionID, endedReason string) error {
	return c.do(ctx, http.MethodPost, "/admin/impersonation/"+url.PathEscape(sessionID)+"/end", endImpersonationRequest{
		EndedReason: endedReason,
	}, nil)
}

// ListActiveImpersonations returns privileged sessions the core API still
// considers open. Used by the sweep job as a restart backstop.
func (c *Client) ListActiveImpersonations(ctx context.Context) ([]ImpersonationGrant, error) {
	var grants []ImpersonationGrant
	err := c.do(ctx, http.MethodGet, "/admin/impersonation?status=active", nil, &grants)
	return grants, err
}

// ListAuditLogs fetches audit entries matching the filter.
func (c *Client) ListAuditLogs(ctx context.Context, filter AuditLogFilter) (AuditLogPage, error) {
	var page AuditLogPage
	q := url.Values{}
	if filter.ActionCategory != "" {
		q.Set("action_category", filter.ActionCategory)
	}
	if filter.ActorType != "" {
		q.Set("actor_type", filter.ActorType)
	}
	if !filter.From.IsZero() {
		q.Set("from", filter.From.Format(time.RFC3339))
	}
	if !filter.To.IsZero() {
		q.Set("to", filter.To.Format(time.RFC3339))
	}
	q.Set("offset", strconv.Itoa(filter.Offset))
	q.Set("limit", strconv.Itoa(filter.Limit))
	err := c.do(ctx, http.MethodGet, "/admin/audit-logs?"+q.Encode(), nil, &page)
	return page, err
}

type problemBody struct {
	Title   string `json:"title"`
	Detail  string `json:"detail"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	return c.doKeyed(ctx, method, path, "", body, out)
}

func (c *Client) doKeyed(ctx context.Context, method, path, idempotencyKey string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return remoteError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func remoteError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var problem problemBody
	message := ""
	if json.Unmarshal(raw, &problem) == nil {
		switch {
		case problem.Message != "":
			message = problem.Message
		case problem.Detail != "":
			message = problem.Detail
		case problem.Title != "":
			message = problem.Title
		}
	}
	return &RemoteError{Status: resp.StatusCode, Message: message}
}
