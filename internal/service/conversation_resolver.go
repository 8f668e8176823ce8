package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/bounty-chat/internal/dto"
	"github.com/noah-isme/bounty-chat/internal/models"
	"github.com/noah-isme/bounty-chat/internal/repository"
)

// JoinRequest is one of DirectAdminJoin, ReportJoin or ChatIDJoin.
type JoinRequest interface {
	joinRequest()
}

// DirectAdminJoin asks for the caller's direct conversation with the admin pool.
type DirectAdminJoin struct{}

// ReportJoin asks for the conversation scoped to a report.
type ReportJoin struct {
	ReportID string
}

// ChatIDJoin jumps straight into an existing conversation.
type ChatIDJoin struct {
	ChatID string
}

func (DirectAdminJoin) joinRequest() {}
func (ReportJoin) joinRequest()      {}
func (ChatIDJoin) joinRequest()      {}

// NewJoinRequest maps a join payload onto its variant. chat_id wins over report_id.
func NewJoinRequest(payload dto.ChatJoinPayload) JoinRequest {
	if chatID := strings.TrimSpace(payload.ChatID); chatID != "" {
		return ChatIDJoin{ChatID: chatID}
	}
	if reportID := strings.TrimSpace(payload.ReportID); reportID != "" {
		return ReportJoin{ReportID: reportID}
	}
	return DirectAdminJoin{}
}

// ConversationResolver decides which conversation a join request maps to and creates it lazily.
type ConversationResolver interface {
	ResolveOrCreate(ctx context.Context, caller models.Caller, request JoinRequest) (models.Conversation, error)
}

type conversationResolver struct {
	chats     repository.ConversationRepository
	reports   repository.ReportRepository
	companies repository.CompanyRepository
	locks     *keyedMutex
	tracer    trace.Tracer
	logger    zerolog.Logger
}

// NewConversationResolver constructs the role-aware conversation resolver.
func NewConversationResolver(chats repository.ConversationRepository, reports repository.ReportRepository, companies repository.CompanyRepository, logger zerolog.Logger) ConversationResolver {
	return &conversationResolver{
		chats:     chats,
		reports:   reports,
		companies: companies,
		locks:     newKeyedMutex(),
		tracer:    otel.Tracer("github.com/noah-isme/bounty-chat/internal/service/chat"),
		logger:    logger.With().Str("component", "conversation_resolver").Logger(),
	}
}

func (r *conversationResolver) ResolveOrCreate(ctx context.Context, caller models.Caller, request JoinRequest) (models.Conversation, error) {
	ctx, span := r.tracer.Start(ctx, "chat.resolve", trace.WithAttributes(
		attribute.String("chat.caller_id", caller.UserID),
		attribute.String("chat.caller_role", string(caller.Role)),
		attribute.String("chat.join", fmt.Sprintf("%T", request)),
	))
	defer span.End()

	var (
		chat models.Conversation
		err  error
	)
	switch caller.Role {
	case models.RoleAdmin:
		chat, err = r.resolveForAdmin(ctx, request)
	case models.RoleCompanyManager:
		chat, err = r.resolveForManager(ctx, caller, request)
	case models.RoleUser:
		chat, err = r.resolveForUser(ctx, caller, request)
	default:
		err = ErrForbidden
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return models.Conversation{}, err
	}

	span.SetAttributes(attribute.String("chat.id", chat.ID), attribute.String("chat.room_id", chat.RoomID()))
	return chat, nil
}

func (r *conversationResolver) resolveForAdmin(ctx context.Context, request JoinRequest) (models.Conversation, error) {
	switch req := request.(type) {
	case ChatIDJoin:
		chat, err := r.chats.GetByID(ctx, req.ChatID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.Conversation{}, ErrChatNotFound
			}
			return models.Conversation{}, fmt.Errorf("load chat %s: %w", req.ChatID, err)
		}
		return chat, nil
	default:
		return models.Conversation{}, ErrForbidden
	}
}

func (r *conversationResolver) resolveForManager(ctx context.Context, caller models.Caller, request JoinRequest) (models.Conversation, error) {
	req, ok := request.(ReportJoin)
	if !ok {
		return models.Conversation{}, ErrForbidden
	}

	company, err := r.companies.GetByManager(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Conversation{}, ErrNoManagedCompany
		}
		return models.Conversation{}, fmt.Errorf("load managed company: %w", err)
	}

	report, err := r.reports.GetWithBounty(ctx, req.ReportID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Conversation{}, ErrReportNotFound
		}
		return models.Conversation{}, fmt.Errorf("load report %s: %w", req.ReportID, err)
	}

	if report.Bounty.CompanyID != company.ID {
		r.logger.Debug().
			Str("user_id", caller.UserID).
			Str("report_id", report.ID).
			Str("company_id", company.ID).
			Msg("manager attempted to join a report of another company")
		return models.Conversation{}, ErrReportNotOwned
	}

	return r.findOrCreate(ctx, reportConversation(report))
}

func (r *conversationResolver) resolveForUser(ctx context.Context, caller models.Caller, request JoinRequest) (models.Conversation, error) {
	switch req := request.(type) {
	case DirectAdminJoin:
		return r.findOrCreate(ctx, models.Conversation{
			ConversationKey: models.AdminConversationKey(caller.UserID),
			UserID:          caller.UserID,
			IsAdmin:         true,
		})
	case ReportJoin:
		report, err := r.reports.GetOwnedByUser(ctx, req.ReportID, caller.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.Conversation{}, ErrReportNotFound
			}
			return models.Conversation{}, fmt.Errorf("load report %s: %w", req.ReportID, err)
		}
		return r.findOrCreate(ctx, reportConversation(report))
	default:
		return models.Conversation{}, ErrForbidden
	}
}

func (r *conversationResolver) findOrCreate(ctx context.Context, candidate models.Conversation) (models.Conversation, error) {
	unlock := r.locks.Lock(candidate.ConversationKey)
	defer unlock()

	chat, err := r.chats.FindOrCreate(ctx, candidate)
	if err != nil {
		return models.Conversation{}, fmt.Errorf("find or create chat %s: %w", candidate.ConversationKey, err)
	}
	return chat, nil
}

// reportConversation builds the conversation between the report author and the company behind its bounty.
func reportConversation(report models.Report) models.Conversation {
	reportID := report.ID
	chat := models.Conversation{
		ConversationKey: models.ReportConversationKey(report.UserID, report.ID),
		UserID:          report.UserID,
		ReportID:        &reportID,
	}
	if companyID := report.Bounty.CompanyID; companyID != "" {
		chat.CompanyID = &companyID
	}
	return chat
}
