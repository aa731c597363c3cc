package crm

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/domain"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/repository"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/telegram"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/apperr"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/config"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Lead statuses recognised in the pipelines.
const (
	StatusChatWithBot     = "chat_with_bot"
	StatusHighEngagement  = "high_engagement"
	StatusActiveUser      = "active_user"
	StatusChatWithManager = "chat_with_manager"
)

const deliveredTTL = 24 * time.Hour

type outboundKey struct{}

type outboundSequence struct {
	updateID int
	n        atomic.Int64
}

// WithOutboundSequence numbers the bot messages imported while ctx serves the given
// update, so a redelivered update imports the same message ids.
func WithOutboundSequence(ctx context.Context, updateID int) context.Context {
	return context.WithValue(ctx, outboundKey{}, &outboundSequence{updateID: updateID})
}

func outboundMessageID(ctx context.Context, chatID int64) string {
	seq, ok := ctx.Value(outboundKey{}).(*outboundSequence)
	if !ok {
		return "bot-" + uuid.NewString()
	}
	return fmt.Sprintf("bot-%d-%d-%d", chatID, seq.updateID, seq.n.Add(1))
}

// MessageSender delivers manager replies to the user.
type MessageSender interface {
	SendText(ctx context.Context, chatID int64, text string, kb *telegram.Keyboard) (int, error)
}

// Store is the persistence the mirror needs.
type Store interface {
	repository.AssociationRepository
	GetState(ctx context.Context, chatID int64) (domain.ChatState, error)
	CreateState(ctx context.Context, chatID int64) (domain.ChatState, error)
	SetTransferredToManager(ctx context.Context, chatID int64, transferred bool, mode domain.Mode) (domain.ChatState, error)
}

// Mirror keeps the CRM in sync with the bot's conversations.
type Mirror struct {
	api              API
	store            Store
	sender           MessageSender
	rdb              redis.Cmdable
	enabled          bool
	mainPipelineID   int64
	appealPipelineID int64
	statusIDs        map[string]int64
	log              *logger.Logger
}

// NewMirror creates the mirror. When the CRM is disabled every mirroring call is a no-op
// while manager message delivery still works.
func NewMirror(cfg config.CRMConfig, api API, store Store, sender MessageSender, rdb redis.Cmdable, log *logger.Logger) *Mirror {
	return &Mirror{
		api:              api,
		store:            store,
		sender:           sender,
		rdb:              rdb,
		enabled:          cfg.IsCRMEnabled(),
		mainPipelineID:   cfg.GetCRMMainPipelineID(),
		appealPipelineID: cfg.GetCRMAppealPipelineID(),
		statusIDs:        cfg.GetCRMStatusIDs(),
		log:              log,
	}
}

// Enabled reports whether a CRM is configured.
func (m *Mirror) Enabled() bool {
	return m.enabled
}

// EnsureAssociation returns the CRM association of a chat, creating contact, lead and chat
// on first contact. Each created entity is saved right away and a retry resumes at the
// first missing one, so a failed step never duplicates a lead.
func (m *Mirror) EnsureAssociation(ctx context.Context, chatID int64, from telegram.Sender, source domain.SourceType) (repository.Association, error) {
	if !m.enabled {
		return repository.Association{ChatID: chatID}, nil
	}

	a, err := m.store.GetAssociation(ctx, chatID)
	switch {
	case err == nil && a.Complete():
		return a, nil
	case err == nil:
		m.log.WithContext(ctx).Info("resuming crm association", "contact_id", a.ContactID, "lead_id", a.LeadID)
	case errors.Is(err, repository.ErrAssociationNotFound):
		a = repository.Association{ChatID: chatID, Status: StatusChatWithBot}
	default:
		return repository.Association{}, fmt.Errorf("load crm association: %w", err)
	}

	if a.ContactID == 0 {
		a.ContactID, err = m.api.CreateContact(ctx, ContactInput{
			Username:  from.Username,
			FirstName: from.FirstName,
			LastName:  from.LastName,
		})
		if err != nil {
			return repository.Association{}, err
		}
		if err := m.saveAssociation(ctx, a); err != nil {
			return repository.Association{}, err
		}
	}

	if a.LeadID == 0 {
		leadName := from.Username
		if leadName == "" {
			leadName = strconv.FormatInt(chatID, 10)
		}
		a.LeadID, err = m.api.CreateLead(ctx, LeadInput{
			Name:       "Telegram: " + leadName,
			ContactID:  a.ContactID,
			PipelineID: m.mainPipelineID,
			StatusID:   m.statusIDs[StatusChatWithBot],
			Source:     string(source),
		})
		if err != nil {
			return repository.Association{}, err
		}
		if err := m.saveAssociation(ctx, a); err != nil {
			return repository.Association{}, err
		}
	}

	if a.CRMChatID == "" {
		a.CRMChatID, err = m.api.CreateChat(ctx, a.ContactID, chatID)
		if err != nil {
			return repository.Association{}, err
		}
		if err := m.saveAssociation(ctx, a); err != nil {
			return repository.Association{}, err
		}
	}

	m.log.WithContext(ctx).Info("crm association created", "contact_id", a.ContactID, "lead_id", a.LeadID, "crm_chat_id", a.CRMChatID)
	return a, nil
}

func (m *Mirror) saveAssociation(ctx context.Context, a repository.Association) error {
	if err := m.store.SaveAssociation(ctx, a); err != nil {
		return fmt.Errorf("save crm association: %w", err)
	}
	return nil
}

// association returns the stored association, or ok=false when the chat was never mirrored.
func (m *Mirror) association(ctx context.Context, chatID int64) (repository.Association, bool, error) {
	if !m.enabled {
		return repository.Association{}, false, nil
	}
	a, err := m.store.GetAssociation(ctx, chatID)
	if errors.Is(err, repository.ErrAssociationNotFound) || (err == nil && !a.Complete()) {
		m.log.WithContext(ctx).Warn("crm association missing, message not mirrored")
		return repository.Association{}, false, nil
	}
	if err != nil {
		return repository.Association{}, false, fmt.Errorf("load crm association: %w", err)
	}
	return a, true, nil
}

// MirrorInbound forwards user text with role=user. The CRM message id is derived
// from the provider message id so redeliveries deduplicate.
func (m *Mirror) MirrorInbound(ctx context.Context, chatID int64, messageID int, text string) error {
	a, ok, err := m.association(ctx, chatID)
	if err != nil || !ok {
		return err
	}
	return m.api.SendMessage(ctx, a.CRMChatID, fmt.Sprintf("tg-%d-%d", chatID, messageID), text)
}

// ImportOutbound forwards bot text with role=bot. Inside an update the message id is
// bot-<chat>-<update>-<n>; outside one it is random.
func (m *Mirror) ImportOutbound(ctx context.Context, chatID int64, text string) error {
	a, ok, err := m.association(ctx, chatID)
	if err != nil || !ok {
		return err
	}
	return m.api.ImportMessage(ctx, a.CRMChatID, outboundMessageID(ctx, chatID), text)
}

// MoveLead moves the chat's lead to status. chat_with_manager lives in the appeal pipeline,
// every other status in the main one. Moving to the current status is a no-op.
func (m *Mirror) MoveLead(ctx context.Context, chatID int64, status string) error {
	a, ok, err := m.association(ctx, chatID)
	if err != nil || !ok {
		return err
	}
	if a.Status == status {
		return nil
	}

	statusID, known := m.statusIDs[status]
	if !known {
		return apperr.Internal(fmt.Sprintf("unknown crm status %q", status))
	}
	pipelineID := m.mainPipelineID
	if status == StatusChatWithManager {
		pipelineID = m.appealPipelineID
	}

	if err := m.api.EditLead(ctx, a.LeadID, pipelineID, statusID); err != nil {
		return err
	}
	if err := m.store.UpdateAssociationStatus(ctx, chatID, status); err != nil {
		return fmt.Errorf("update crm association status: %w", err)
	}
	m.log.WithContext(ctx).Info("crm lead moved", "lead_id", a.LeadID, "status", status)
	return nil
}

// HandOff moves the lead to the manager and imports the conversation summary.
func (m *Mirror) HandOff(ctx context.Context, chatID int64, summary string) error {
	if err := m.MoveLead(ctx, chatID, StatusChatWithManager); err != nil {
		return err
	}
	if summary == "" {
		return nil
	}
	return m.ImportOutbound(ctx, chatID, summary)
}

// UpdateContact stores collected contact details on the CRM contact.
func (m *Mirror) UpdateContact(ctx context.Context, chatID int64, details ContactDetails) error {
	a, ok, err := m.association(ctx, chatID)
	if err != nil || !ok {
		return err
	}
	return m.api.UpdateContact(ctx, a.ContactID, details)
}

// DeliverManagerMessage relays a manager reply to the user: the chat is switched into
// manager mode and the text is sent with the close-chat keyboard. A non-empty
// crmMessageID is delivered at most once.
func (m *Mirror) DeliverManagerMessage(ctx context.Context, chatID int64, crmMessageID, text string) error {
	dedupKey := ""
	if crmMessageID != "" && m.rdb != nil {
		key := "crm:delivered:" + crmMessageID
		fresh, err := m.rdb.SetNX(ctx, key, chatID, deliveredTTL).Result()
		switch {
		case err != nil:
			m.log.WithContext(ctx).Warn("crm delivery dedup unavailable", "error", err)
		case !fresh:
			m.log.WithContext(ctx).Info("crm message already delivered", "crm_message_id", crmMessageID)
			return nil
		default:
			dedupKey = key
		}
	}

	if err := m.deliver(ctx, chatID, text); err != nil {
		if dedupKey != "" {
			m.rdb.Del(context.WithoutCancel(ctx), dedupKey)
		}
		return err
	}
	return nil
}

func (m *Mirror) deliver(ctx context.Context, chatID int64, text string) error {
	if _, err := m.store.GetState(ctx, chatID); errors.Is(err, domain.ErrStateNotFound) {
		if _, err := m.store.CreateState(ctx, chatID); err != nil {
			return fmt.Errorf("create state: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	if _, err := m.store.SetTransferredToManager(ctx, chatID, true, domain.ModeManager); err != nil {
		return fmt.Errorf("switch to manager mode: %w", err)
	}

	if _, err := m.sender.SendText(ctx, chatID, text, telegram.ReplyButtons(domain.CloseManagerChat)); err != nil {
		return err
	}
	return nil
}

// ResolveChat maps a CRM chat id back to the user's chat id.
func (m *Mirror) ResolveChat(ctx context.Context, crmChatID string) (int64, error) {
	a, err := m.store.GetAssociationByCRMChat(ctx, crmChatID)
	if errors.Is(err, repository.ErrAssociationNotFound) {
		return 0, apperr.NotFound(fmt.Sprintf("no chat for crm chat %s", crmChatID))
	}
	if err != nil {
		return 0, fmt.Errorf("resolve crm chat: %w", err)
	}
	return a.ChatID, nil
}
