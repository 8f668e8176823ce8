package service

import (
	"context"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bounty-chat/internal/dto"
	"github.com/noah-isme/bounty-chat/internal/models"
)

func TestAdminChatServiceListsConversationsWithActivity(t *testing.T) {
	f := newChatFixture(t, ChatServiceOptions{})
	ctx := context.Background()
	svc := NewAdminChatService(f.chats, f.messages, f.presence, validator.New(), zerolog.Nop())

	author := f.seedUser(t, models.RoleUser)
	other := f.seedUser(t, models.RoleUser)
	report := f.seedReport(t, author, f.seedCompany(t, f.seedUser(t, models.RoleCompanyManager)))

	direct, err := f.service.Join(ctx, callerOf(author), DirectAdminJoin{})
	require.NoError(t, err)
	scoped, err := f.service.Join(ctx, callerOf(author), ReportJoin{ReportID: report.ID})
	require.NoError(t, err)
	_, err = f.service.Join(ctx, callerOf(other), DirectAdminJoin{})
	require.NoError(t, err)

	_, err = f.service.Send(ctx, callerOf(author), dto.ChatMessagePayload{ChatID: direct.ID, Content: "first"})
	require.NoError(t, err)
	_, err = f.service.Send(ctx, callerOf(author), dto.ChatMessagePayload{ChatID: direct.ID, Content: "latest"})
	require.NoError(t, err)

	f.presence.Join(direct.RoomID(), newRecordingMember(author.ID))
	f.presence.Join(direct.RoomID(), newRecordingMember("admin-1"))

	all, err := svc.List(ctx, dto.AdminChatListRequest{})
	require.NoError(t, err)
	require.Len(t, all.Items, 3)
	require.Equal(t, int64(3), all.Pagination.TotalItems)
	require.Equal(t, direct.ID, all.Items[0].ID)
	require.Equal(t, int64(2), all.Items[0].MessageCount)
	require.NotNil(t, all.Items[0].LastMessage)
	require.Equal(t, "latest", all.Items[0].LastMessage.Content)
	require.Equal(t, "latest", all.Items[0].LastMessagePreview)
	require.True(t, all.Items[0].Online)
	require.NotNil(t, all.Items[0].User)

	reports, err := svc.List(ctx, dto.AdminChatListRequest{Type: "REPORT"})
	require.NoError(t, err)
	require.Len(t, reports.Items, 1)
	require.Equal(t, scoped.ID, reports.Items[0].ID)
	require.Nil(t, reports.Items[0].LastMessage)
	require.Empty(t, reports.Items[0].LastMessagePreview)
	require.Zero(t, reports.Items[0].MessageCount)
	require.False(t, reports.Items[0].Online)

	mine, err := svc.List(ctx, dto.AdminChatListRequest{Type: dto.ChatListTypeAdmin, UserID: author.ID})
	require.NoError(t, err)
	require.Len(t, mine.Items, 1)
	require.Equal(t, direct.ID, mine.Items[0].ID)

	paged, err := svc.List(ctx, dto.AdminChatListRequest{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, paged.Items, 1)
	require.Equal(t, 2, paged.Pagination.TotalPages)
}

func TestAdminChatServiceRejectsInvalidFilters(t *testing.T) {
	f := newChatFixture(t, ChatServiceOptions{})
	svc := NewAdminChatService(f.chats, f.messages, f.presence, validator.New(), zerolog.Nop())

	_, err := svc.List(context.Background(), dto.AdminChatListRequest{Type: "archived"})
	require.Error(t, err)

	_, err = svc.List(context.Background(), dto.AdminChatListRequest{PageSize: 500})
	require.Error(t, err)
}

func TestAdminChatServicePreviewStripsMarkupButKeepsStoredContent(t *testing.T) {
	f := newChatFixture(t, ChatServiceOptions{})
	ctx := context.Background()
	svc := NewAdminChatService(f.chats, f.messages, f.presence, validator.New(), zerolog.Nop())

	user := f.seedUser(t, models.RoleUser)
	chat, err := f.service.Join(ctx, callerOf(user), DirectAdminJoin{})
	require.NoError(t, err)

	content := "payload: <img src=x onerror=alert(1)>\n fires & <b>works</b>"
	_, err = f.service.Send(ctx, callerOf(user), dto.ChatMessagePayload{ChatID: chat.ID, Content: content})
	require.NoError(t, err)

	list, err := svc.List(ctx, dto.AdminChatListRequest{})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	require.Equal(t, content, list.Items[0].LastMessage.Content)
	require.Equal(t, "payload: fires &amp; works", list.Items[0].LastMessagePreview)
	require.Equal(t, int64(1), list.Items[0].MessageCount)
}

func TestAdminChatServicePreviewTruncatesLongMessages(t *testing.T) {
	svc := NewAdminChatService(nil, nil, nil, validator.New(), zerolog.Nop()).(*adminChatService)

	short := svc.previewOf("short")
	require.Equal(t, "short", short)

	long := svc.previewOf(strings.Repeat("a", 200))
	require.Equal(t, strings.Repeat("a", adminChatPreviewLength)+"…", long)

	entity := svc.previewOf(strings.Repeat("a", adminChatPreviewLength-2) + " & tail")
	require.Equal(t, strings.Repeat("a", adminChatPreviewLength-2)+"…", entity)
}
