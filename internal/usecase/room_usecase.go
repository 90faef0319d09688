package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/qrave1/RoomChat/internal/application/constant"
	"github.com/qrave1/RoomChat/internal/application/metric"
	"github.com/qrave1/RoomChat/internal/domain/apperr"
	"github.com/qrave1/RoomChat/internal/domain/events"
	"github.com/qrave1/RoomChat/internal/domain/input"
	"github.com/qrave1/RoomChat/internal/domain/models"
	"github.com/qrave1/RoomChat/internal/infra/adapters/memory"
)

// RoomUsecase turns connection events into directory calls and notifies the
// affected connections. Caller mistakes are answered on the connection and are not
// returned as errors.
type RoomUsecase interface {
	HandleJoin(ctx context.Context, connID string, ev events.JoinEvent) error
	HandleLeave(ctx context.Context, connID string) error
	HandleDisconnect(ctx context.Context, connID string) error

	HandleMessage(ctx context.Context, connID string, ev events.ChatEvent) error
	HandleHistory(ctx context.Context, connID string, ev events.HistoryRequestEvent) error

	HandleApproveJoin(ctx context.Context, connID string, ev events.TargetEvent) error
	HandleRejectJoin(ctx context.Context, connID string, ev events.RejectEvent) error
	HandleCancelJoin(ctx context.Context, connID string) error
	HandlePendingList(ctx context.Context, connID string) error
	HandleKick(ctx context.Context, connID string, ev events.TargetEvent) error
	HandleTransferAdmin(ctx context.Context, connID string, ev events.TargetEvent) error

	HandleCheckAvailability(ctx context.Context, connID string, ev events.RoomQueryEvent) error
	HandleCheckCapacity(ctx context.Context, connID string, ev events.RoomQueryEvent) error
	HandlePing(ctx context.Context, connID string)
	HandleActivity(ctx context.Context, connID string) error

	CheckRoomAvailability(ctx context.Context, roomID, username string) (*events.AvailabilityEvent, error)
	CheckRoomCapacity(ctx context.Context, roomID string) (*events.CapacityEvent, error)
}

type roomUsecase struct {
	directory *RoomDirectory
	messages  MessageUsecase
	wsRepo    memory.WebsocketConnectionRepository
}

func NewRoomUsecase(
	directory *RoomDirectory,
	messages MessageUsecase,
	wsRepo memory.WebsocketConnectionRepository,
) RoomUsecase {
	return &roomUsecase{
		directory: directory,
		messages:  messages,
		wsRepo:    wsRepo,
	}
}

func (u *roomUsecase) HandleJoin(ctx context.Context, connID string, ev events.JoinEvent) error {
	res, err := u.directory.AddMember(ctx, input.JoinInput{
		ConnectionID:          connID,
		Username:              ev.Username,
		RoomID:                ev.RoomID,
		AdminToken:            ev.AdminToken,
		RequiresAdminApproval: ev.RequiresAdminApproval,
	})
	if res != nil {
		u.announceLeave(ctx, res.Evicted)
		u.announceCancelled(ctx, res.CancelledPending)
	}

	if err != nil {
		metric.RecordJoin(apperr.Code(err))
		return u.fail(connID, events.TypeJoinError, err)
	}

	if res.Queued != nil {
		metric.RecordJoin("queued")
		u.announceQueued(ctx, res.Queued)
		return nil
	}

	metric.RecordJoin("joined")
	u.announceJoin(ctx, res)

	return nil
}

func (u *roomUsecase) HandleLeave(ctx context.Context, connID string) error {
	cancelled, err := u.directory.CancelPendingFor(ctx, connID)
	if err != nil {
		return u.fail(connID, events.TypeError, err)
	}
	u.announceCancelled(ctx, cancelled)

	res, err := u.directory.RemoveMember(ctx, connID)
	if err != nil {
		return u.fail(connID, events.TypeError, err)
	}

	if res != nil {
		u.send(connID, events.TypeLeft, events.RoomEvent{RoomID: res.Session.RoomID})
		u.announceLeave(ctx, res)
	}

	return nil
}

// HandleDisconnect is HandleLeave for a connection that is already gone.
func (u *roomUsecase) HandleDisconnect(ctx context.Context, connID string) error {
	defer u.messages.Forget(connID)

	cancelled, err := u.directory.CancelPendingFor(ctx, connID)
	if err != nil {
		return err
	}
	u.announceCancelled(ctx, cancelled)

	res, err := u.directory.RemoveMember(ctx, connID)
	if err != nil {
		return err
	}

	u.announceLeave(ctx, res)

	return nil
}

func (u *roomUsecase) HandleMessage(ctx context.Context, connID string, ev events.ChatEvent) error {
	session, err := u.requireSession(ctx, connID)
	if err != nil {
		return u.fail(connID, events.TypeError, err)
	}

	msg, err := u.messages.Send(ctx, *session, ev.Text)
	if err != nil {
		return u.fail(connID, events.TypeError, err)
	}

	room, err := u.directory.Room(ctx, session.RoomID)
	if err != nil {
		return err
	}

	u.broadcast(room, events.TypeMessage, msg, "")

	return nil
}

func (u *roomUsecase) HandleHistory(ctx context.Context, connID string, ev events.HistoryRequestEvent) error {
	session, err := u.requireSession(ctx, connID)
	if err != nil {
		return u.fail(connID, events.TypeError, err)
	}

	u.sendHistory(ctx, connID, session.RoomID, ev.Limit)

	return nil
}

func (u *roomUsecase) HandleApproveJoin(ctx context.Context, connID string, ev events.TargetEvent) error {
	session, err := u.requireSession(ctx, connID)
	if err != nil {
		return u.fail(connID, events.TypeError, err)
	}

	res, err := u.directory.Approve(ctx, session.RoomID, connID, ev.ConnectionID)
	if err != nil {
		if res == nil {
			return u.fail(connID, events.TypeError, err)
		}

		// отказ получает заявитель, а не админ
		u.send(ev.ConnectionID, events.TypeJoinRejected, events.JoinRejectedEvent{
			RoomID: session.RoomID,
			Code:   apperr.Code(err),
			Reason: apperr.Message(err),
		})
		u.sendPendingQueue(ctx, connID, session.RoomID)

		if apperr.Code(err) == apperr.CodeInternal {
			return err
		}

		return nil
	}

	u.send(ev.ConnectionID, events.TypeJoinApproved, events.RoomEvent{RoomID: session.RoomID})
	metric.RecordJoin("approved")

	u.announceJoin(ctx, res.Join)
	u.sendPendingQueue(ctx, connID, session.RoomID)

	return nil
}

func (u *roomUsecase) HandleRejectJoin(ctx context.Context, connID string, ev events.RejectEvent) error {
	session, err := u.requireSession(ctx, connID)
	if err != nil {
		return u.fail(connID, events.TypeError, err)
	}

	reason := strings.TrimSpace(ev.Reason)
	if reason == "" {
		reason = events.DefaultRejectReason
	}

	rejected, err := u.directory.Reject(ctx, session.RoomID, connID, ev.ConnectionID, reason)
	if err != nil {
		return u.fail(connID, events.TypeError, err)
	}

	u.send(rejected.ConnectionID, events.TypeJoinRejected, events.JoinRejectedEvent{
		RoomID: session.RoomID,
		Reason: reason,
	})
	u.sendPendingQueue(ctx, connID, session.RoomID)

	return nil
}

func (u *roomUsecase) HandleCancelJoin(ctx context.Context, connID string) error {
	cancelled, err := u.directory.CancelPendingFor(ctx, connID)
	if err != nil {
		return u.fail(connID, events.TypeError, err)
	}

	if cancelled == nil {
		return nil
	}

	u.send(connID, events.TypeJoinCancelled, events.RoomEvent{RoomID: cancelled.RoomID})
	u.announceCancelled(ctx, cancelled)

	return nil
}

func (u *roomUsecase) HandlePendingList(ctx context.Context, connID string) error {
	session, err := u.requireSession(ctx, connID)
	if err != nil {
		return u.fail(connID, events.TypeError, err)
	}

	isAdmin, err := u.directory.IsAdmin(ctx, connID, session.RoomID)
	if err != nil {
		return u.fail(connID, events.TypeError, err)
	}

	if !isAdmin {
		return u.fail(connID, events.TypeError, apperr.ErrNotAdmin)
	}

	u.sendPendingQueue(ctx, connID, session.RoomID)

	return nil
}

func (u *roomUsecase) HandleKick(ctx context.Context, connID string, ev events.TargetEvent) error {
	session, err := u.requireSession(ctx, connID)
	if err != nil {
		return u.fail(connID, events.TypeError, err)
	}

	res, err := u.directory.Kick(ctx, session.RoomID, connID, ev.ConnectionID)
	if err != nil && res == nil {
		return u.fail(connID, events.TypeError, err)
	}

	u.send(ev.ConnectionID, events.TypeKicked, events.RoomEvent{RoomID: session.RoomID})
	u.wsRepo.Close(ev.ConnectionID)

	slog.Info(
		"user kicked",
		slog.String(constant.RoomID, session.RoomID),
		slog.String(constant.ConnectionID, connID),
		slog.String(constant.Target, ev.ConnectionID),
	)

	room, roomErr := u.directory.Room(ctx, session.RoomID)
	if roomErr == nil {
		u.broadcast(room, events.TypeUserKicked, events.UserEvent{
			RoomID:       session.RoomID,
			ConnectionID: res.Session.ConnectionID,
			Username:     res.Session.Username,
		}, "")
	}

	u.announceLeave(ctx, res)

	return err
}

func (u *roomUsecase) HandleTransferAdmin(ctx context.Context, connID string, ev events.TargetEvent) error {
	session, err := u.requireSession(ctx, connID)
	if err != nil {
		return u.fail(connID, events.TypeError, err)
	}

	token, err := u.directory.HandOver(ctx, session.RoomID, connID, ev.ConnectionID)
	if err != nil {
		return u.fail(connID, events.TypeError, err)
	}

	room, err := u.directory.Room(ctx, session.RoomID)
	if err != nil {
		return err
	}

	username, _ := room.Username(ev.ConnectionID)

	u.send(connID, events.TypeAdminStatus, events.AdminStatusEvent{
		RoomID:       session.RoomID,
		ConnectionID: connID,
		Username:     session.Username,
		IsAdmin:      false,
	})
	u.announceAdmin(room, &AdminChange{ConnectionID: ev.ConnectionID, Username: username, AdminToken: token})
	u.broadcastMembers(room)

	return nil
}

func (u *roomUsecase) HandleCheckAvailability(ctx context.Context, connID string, ev events.RoomQueryEvent) error {
	res, err := u.CheckRoomAvailability(ctx, ev.RoomID, ev.Username)
	if err != nil {
		return u.fail(connID, events.TypeError, err)
	}

	u.send(connID, events.TypeAvailability, res)

	return nil
}

func (u *roomUsecase) HandleCheckCapacity(ctx context.Context, connID string, ev events.RoomQueryEvent) error {
	res, err := u.CheckRoomCapacity(ctx, ev.RoomID)
	if err != nil {
		return u.fail(connID, events.TypeError, err)
	}

	u.send(connID, events.TypeCapacity, res)

	return nil
}

func (u *roomUsecase) HandlePing(_ context.Context, connID string) {
	u.send(connID, events.TypePong, nil)
}

// HandleActivity runs on every pong and inbound frame of a connection.
func (u *roomUsecase) HandleActivity(ctx context.Context, connID string) error {
	return u.directory.TouchSession(ctx, connID)
}

func (u *roomUsecase) CheckRoomAvailability(ctx context.Context, roomID, username string) (*events.AvailabilityEvent, error) {
	roomID = models.NormalizeRoomID(roomID)
	if roomID == "" {
		return nil, apperr.ErrInvalidInput
	}

	room, err := u.directory.Room(ctx, roomID)
	if err != nil {
		return nil, err
	}

	res := &events.AvailabilityEvent{
		RoomID:   roomID,
		Capacity: u.directory.Capacity(roomID),
	}

	if room != nil {
		res.Exists = true
		res.MemberCount = len(room.Members)
		res.Full = res.MemberCount >= room.Capacity
		res.RequiresApproval = room.RequiresApproval()
		res.HasAdmin = room.Admin.Holder() != ""
	}

	if username = models.NormalizeUsername(username); username != "" {
		available := true
		if room != nil {
			for _, m := range room.Members {
				if m.Username == username {
					available = false
					break
				}
			}
		}
		res.UsernameAvailable = &available
	}

	return res, nil
}

func (u *roomUsecase) CheckRoomCapacity(ctx context.Context, roomID string) (*events.CapacityEvent, error) {
	roomID = models.NormalizeRoomID(roomID)
	if roomID == "" {
		return nil, apperr.ErrInvalidInput
	}

	room, err := u.directory.Room(ctx, roomID)
	if err != nil {
		return nil, err
	}

	res := &events.CapacityEvent{
		RoomID:   roomID,
		Capacity: u.directory.Capacity(roomID),
	}

	if room != nil {
		res.MemberCount = len(room.Members)
	}

	res.Available = max(res.Capacity-res.MemberCount, 0)

	return res, nil
}

func (u *roomUsecase) requireSession(ctx context.Context, connID string) (*models.Session, error) {
	session, err := u.directory.Session(ctx, connID)
	if err != nil {
		return nil, err
	}

	if session == nil {
		return nil, apperr.ErrNotInRoom
	}

	return session, nil
}

func (u *roomUsecase) announceJoin(ctx context.Context, res *JoinResult) {
	if res == nil {
		return
	}

	s := res.Session

	u.send(s.ConnectionID, events.TypeJoined, events.JoinedEvent{
		RoomID:           s.RoomID,
		Username:         s.Username,
		ConnectionID:     s.ConnectionID,
		IsAdmin:          res.IsAdmin,
		AdminToken:       res.AdminToken,
		RequiresApproval: res.RequiresApproval,
		Capacity:         res.Capacity,
	})
	u.sendHistory(ctx, s.ConnectionID, s.RoomID, 0)

	if res.PreviousAdmin != "" {
		u.send(res.PreviousAdmin, events.TypeAdminStatus, events.AdminStatusEvent{
			RoomID:       s.RoomID,
			ConnectionID: res.PreviousAdmin,
			IsAdmin:      false,
		})
	}

	room, err := u.directory.Room(ctx, s.RoomID)
	if err != nil || room == nil {
		return
	}

	u.broadcast(room, events.TypeUserJoined, events.UserEvent{
		RoomID:       s.RoomID,
		ConnectionID: s.ConnectionID,
		Username:     s.Username,
	}, s.ConnectionID)
	u.broadcastMembers(room)

	if res.IsAdmin && res.RequiresApproval {
		u.sendPendingQueue(ctx, s.ConnectionID, s.RoomID)
	}
}

func (u *roomUsecase) announceLeave(ctx context.Context, res *LeaveResult) {
	if res == nil {
		return
	}

	s := res.Session

	for _, p := range res.ClearedPending {
		u.send(p.ConnectionID, events.TypeJoinRejected, events.JoinRejectedEvent{
			RoomID: s.RoomID,
			Reason: events.RoomClosedReason,
		})
	}

	if res.Remaining == 0 {
		return
	}

	room, err := u.directory.Room(ctx, s.RoomID)
	if err != nil || room == nil {
		return
	}

	u.broadcast(room, events.TypeUserLeft, events.UserEvent{
		RoomID:       s.RoomID,
		ConnectionID: s.ConnectionID,
		Username:     s.Username,
	}, "")

	switch {
	case res.AdminChange != nil:
		u.announceAdmin(room, res.AdminChange)
	case res.WasAdmin:
		u.broadcast(room, events.TypeAdminStatus, events.AdminStatusEvent{
			RoomID:       s.RoomID,
			ConnectionID: s.ConnectionID,
			Username:     s.Username,
			IsAdmin:      false,
		}, "")
	}

	u.broadcastMembers(room)
}

// announceAdmin tells the room who holds admin now; only the holder sees the token.
func (u *roomUsecase) announceAdmin(room *models.Room, change *AdminChange) {
	status := events.AdminStatusEvent{
		RoomID:       room.ID,
		ConnectionID: change.ConnectionID,
		Username:     change.Username,
		IsAdmin:      true,
	}

	u.broadcast(room, events.TypeAdminStatus, status, change.ConnectionID)

	status.AdminToken = change.AdminToken
	u.send(change.ConnectionID, events.TypeAdminStatus, status)
}

func (u *roomUsecase) announceQueued(ctx context.Context, p *models.PendingJoin) {
	u.send(p.ConnectionID, events.TypeJoinPending, events.PendingEvent{
		RoomID:      p.RoomID,
		RequestedAt: p.RequestedAt,
	})

	admin, err := u.directory.CurrentAdmin(ctx, p.RoomID)
	if err != nil || admin == "" {
		return
	}

	u.send(admin, events.TypeJoinRequested, events.JoinRequestedEvent{
		ConnectionID: p.ConnectionID,
		Username:     p.Username,
		RequestedAt:  p.RequestedAt,
	})
	u.sendPendingQueue(ctx, admin, p.RoomID)
}

func (u *roomUsecase) announceCancelled(ctx context.Context, p *models.PendingJoin) {
	if p == nil {
		return
	}

	admin, err := u.directory.CurrentAdmin(ctx, p.RoomID)
	if err != nil || admin == "" {
		return
	}

	u.sendPendingQueue(ctx, admin, p.RoomID)
}

func (u *roomUsecase) sendPendingQueue(ctx context.Context, connID, roomID string) {
	pending, err := u.directory.ListPending(ctx, roomID)
	if err != nil {
		slog.Error("list pending joins", slog.String(constant.RoomID, roomID), slog.Any(constant.Error, err))
		return
	}

	if pending == nil {
		pending = []models.PendingJoin{}
	}

	u.send(connID, events.TypePendingQueue, events.PendingQueueEvent{RoomID: roomID, Pending: pending})
}

func (u *roomUsecase) sendHistory(ctx context.Context, connID, roomID string, limit int) {
	messages, err := u.messages.History(ctx, roomID, limit)
	if err != nil {
		slog.Error("get history", slog.String(constant.RoomID, roomID), slog.Any(constant.Error, err))
		return
	}

	u.send(connID, events.TypeHistory, events.HistoryEvent{RoomID: roomID, Messages: messages})
}

func (u *roomUsecase) broadcastMembers(room *models.Room) {
	list := events.MembersEvent{
		RoomID:   room.ID,
		Members:  make([]events.Member, 0, len(room.Members)),
		Capacity: room.Capacity,
	}

	for _, m := range room.Members {
		list.Members = append(list.Members, events.Member{
			ConnectionID: m.ConnectionID,
			Username:     m.Username,
			IsAdmin:      room.Admin.Holder() == m.ConnectionID,
		})
	}

	u.broadcast(room, events.TypeMembers, list, "")
}

func (u *roomUsecase) broadcast(room *models.Room, typ string, data any, except string) {
	msg, ok := newMessage(typ, data)
	if !ok {
		return
	}

	for _, m := range room.Members {
		if m.ConnectionID == except {
			continue
		}
		u.wsRepo.Write(m.ConnectionID, msg)
	}
}

func (u *roomUsecase) send(connID, typ string, data any) {
	if msg, ok := newMessage(typ, data); ok {
		u.wsRepo.Write(connID, msg)
	}
}

// fail answers the connection with err. Only errors outside the taxonomy are returned.
func (u *roomUsecase) fail(connID, typ string, err error) error {
	u.send(connID, typ, events.ErrorEvent{Code: apperr.Code(err), Message: apperr.Message(err)})

	if apperr.Code(err) == apperr.CodeInternal {
		return err
	}

	return nil
}

func newMessage(typ string, data any) (events.Message, bool) {
	msg := events.Message{Type: typ}

	if data == nil {
		return msg, true
	}

	raw, err := json.Marshal(data)
	if err != nil {
		slog.Error("marshal event", slog.String("type", typ), slog.Any(constant.Error, err))
		return msg, false
	}

	msg.Data = raw

	return msg, true
}
