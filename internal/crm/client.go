// Package crm mirrors the bot's conversations into the sales CRM and owns the
// hand-off to a human manager.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/apperr"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/config"
)

// MessageRole tells the CRM who authored a mirrored message.
type MessageRole string

const (
	RoleUser MessageRole = "user"
	RoleBot  MessageRole = "bot"
)

// ContactInput is the payload of a new CRM contact.
type ContactInput struct {
	Username  string
	FirstName string
	LastName  string
}

// LeadInput is the payload of a new CRM lead.
type LeadInput struct {
	Name       string
	ContactID  int64
	PipelineID int64
	StatusID   int64
	Source     string
}

// ContactDetails are the fields filled by the contact collector.
type ContactDetails struct {
	Name  string
	Phone string
	Email string
}

// API is the set of CRM calls used by the mirror.
type API interface {
	CreateContact(ctx context.Context, in ContactInput) (int64, error)
	UpdateContact(ctx context.Context, contactID int64, details ContactDetails) error
	CreateLead(ctx context.Context, in LeadInput) (int64, error)
	EditLead(ctx context.Context, leadID, pipelineID, statusID int64) error
	CreateChat(ctx context.Context, contactID, tgChatID int64) (string, error)
	SendMessage(ctx context.Context, crmChatID, messageID, text string) error
	ImportMessage(ctx context.Context, crmChatID, messageID, text string) error
}

// Client talks to the CRM REST API.
type Client struct {
	baseURL         string
	token           string
	usernameFieldID int64
	sourceFieldID   int64
	http            *http.Client
}

var _ API = (*Client)(nil)

// NewClient returns nil when the CRM is not configured; a nil *Client is a valid no-op API.
func NewClient(cfg config.CRMConfig) *Client {
	if !cfg.IsCRMEnabled() {
		return nil
	}
	return &Client{
		baseURL:         strings.TrimRight(cfg.GetCRMBaseURL(), "/"),
		token:           cfg.GetCRMToken(),
		usernameFieldID: cfg.GetCRMUsernameFieldID(),
		sourceFieldID:   cfg.GetCRMLeadSourceFieldID(),
		http:            &http.Client{Timeout: cfg.GetOutboundTimeout()},
	}
}

type customFieldValue struct {
	FieldID   int64             `json:"field_id,omitempty"`
	FieldCode string            `json:"field_code,omitempty"`
	Values    []customFieldItem `json:"values"`
}

type customFieldItem struct {
	Value    string `json:"value"`
	EnumCode string `json:"enum_code,omitempty"`
}

type contactRequest struct {
	Name               string             `json:"name,omitempty"`
	FirstName          string             `json:"first_name,omitempty"`
	LastName           string             `json:"last_name,omitempty"`
	CustomFieldsValues []customFieldValue `json:"custom_fields_values,omitempty"`
}

type entityRef struct {
	ID int64 `json:"id"`
}

type leadRequest struct {
	Name               string             `json:"name,omitempty"`
	PipelineID         int64              `json:"pipeline_id"`
	StatusID           int64              `json:"status_id,omitempty"`
	CustomFieldsValues []customFieldValue `json:"custom_fields_values,omitempty"`
	Embedded           *leadEmbedded      `json:"_embedded,omitempty"`
}

type leadEmbedded struct {
	Contacts []entityRef `json:"contacts"`
}

type embeddedResponse struct {
	Embedded struct {
		Contacts []entityRef `json:"contacts"`
		Leads    []entityRef `json:"leads"`
	} `json:"_embedded"`
}

type chatRequest struct {
	ContactID int64 `json:"contact_id"`
	TgChatID  int64 `json:"tg_chat_id"`
}

type chatResponse struct {
	ID string `json:"id"`
}

type messageRequest struct {
	MessageID string      `json:"msg_id"`
	Role      MessageRole `json:"role"`
	Text      string      `json:"text"`
}

// CreateContact creates a contact and returns its id.
func (c *Client) CreateContact(ctx context.Context, in ContactInput) (int64, error) {
	if c == nil {
		return 0, nil
	}
	name := strings.TrimSpace(in.FirstName + " " + in.LastName)
	if name == "" {
		name = in.Username
	}
	body := contactRequest{Name: name, FirstName: in.FirstName, LastName: in.LastName}
	if c.usernameFieldID != 0 && in.Username != "" {
		body.CustomFieldsValues = []customFieldValue{{
			FieldID: c.usernameFieldID,
			Values:  []customFieldItem{{Value: in.Username}},
		}}
	}

	var resp embeddedResponse
	if err := c.do(ctx, http.MethodPost, "/api/v4/contacts", []contactRequest{body}, &resp); err != nil {
		return 0, apperr.External("create crm contact", err)
	}
	if len(resp.Embedded.Contacts) == 0 {
		return 0, apperr.External("create crm contact", fmt.Errorf("empty response"))
	}
	return resp.Embedded.Contacts[0].ID, nil
}

// UpdateContact stores the collected phone, e-mail and name on the contact.
func (c *Client) UpdateContact(ctx context.Context, contactID int64, details ContactDetails) error {
	if c == nil {
		return nil
	}
	body := contactRequest{Name: details.Name}
	if details.Phone != "" {
		body.CustomFieldsValues = append(body.CustomFieldsValues, customFieldValue{
			FieldCode: "PHONE",
			Values:    []customFieldItem{{Value: details.Phone, EnumCode: "MOB"}},
		})
	}
	if details.Email != "" {
		body.CustomFieldsValues = append(body.CustomFieldsValues, customFieldValue{
			FieldCode: "EMAIL",
			Values:    []customFieldItem{{Value: details.Email, EnumCode: "WORK"}},
		})
	}

	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/v4/contacts/%d", contactID), body, nil); err != nil {
		return apperr.External("update crm contact", err)
	}
	return nil
}

// CreateLead creates a lead bound to a contact and returns its id.
func (c *Client) CreateLead(ctx context.Context, in LeadInput) (int64, error) {
	if c == nil {
		return 0, nil
	}
	body := leadRequest{
		Name:       in.Name,
		PipelineID: in.PipelineID,
		StatusID:   in.StatusID,
		Embedded:   &leadEmbedded{Contacts: []entityRef{{ID: in.ContactID}}},
	}
	if c.sourceFieldID != 0 && in.Source != "" {
		body.CustomFieldsValues = []customFieldValue{{
			FieldID: c.sourceFieldID,
			Values:  []customFieldItem{{Value: in.Source}},
		}}
	}

	var resp embeddedResponse
	if err := c.do(ctx, http.MethodPost, "/api/v4/leads", []leadRequest{body}, &resp); err != nil {
		return 0, apperr.External("create crm lead", err)
	}
	if len(resp.Embedded.Leads) == 0 {
		return 0, apperr.External("create crm lead", fmt.Errorf("empty response"))
	}
	return resp.Embedded.Leads[0].ID, nil
}

// EditLead moves a lead to pipelineID/statusID.
func (c *Client) EditLead(ctx context.Context, leadID, pipelineID, statusID int64) error {
	if c == nil {
		return nil
	}
	body := leadRequest{PipelineID: pipelineID, StatusID: statusID}
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/v4/leads/%d", leadID), body, nil); err != nil {
		return apperr.External("edit crm lead", err)
	}
	return nil
}

// CreateChat opens a CRM chat for the contact and returns the CRM chat id.
func (c *Client) CreateChat(ctx context.Context, contactID, tgChatID int64) (string, error) {
	if c == nil {
		return "", nil
	}
	var resp chatResponse
	if err := c.do(ctx, http.MethodPost, "/api/v4/chats", chatRequest{ContactID: contactID, TgChatID: tgChatID}, &resp); err != nil {
		return "", apperr.External("create crm chat", err)
	}
	if resp.ID == "" {
		return "", apperr.External("create crm chat", fmt.Errorf("empty chat id"))
	}
	return resp.ID, nil
}

// SendMessage posts a user-authored message into the CRM chat.
func (c *Client) SendMessage(ctx context.Context, crmChatID, messageID, text string) error {
	if c == nil {
		return nil
	}
	body := messageRequest{MessageID: messageID, Role: RoleUser, Text: text}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v4/chats/%s/messages", crmChatID), body, nil); err != nil {
		return apperr.External("mirror user message", err)
	}
	return nil
}

// ImportMessage posts a bot-authored message without starting a bot turn in the CRM.
func (c *Client) ImportMessage(ctx context.Context, crmChatID, messageID, text string) error {
	if c == nil {
		return nil
	}
	body := messageRequest{MessageID: messageID, Role: RoleBot, Text: text}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v4/chats/%s/messages/import", crmChatID), body, nil); err != nil {
		return apperr.External("import bot message", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal crm payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("crm request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("crm returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode crm response: %w", err)
	}
	return nil
}
