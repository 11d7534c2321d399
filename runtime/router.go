package runtime

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/domain/mimetypes"
	"chat-relay/errors"
	"encoding/json"
	"fmt"

	"github.com/abadojack/whatlanggo"
	"github.com/samber/lo"
)

const (
	privateChatHistoryLimit = 100
	commonRoomHistoryLimit  = 100
	defaultHistoryLimit     = 50
)

type route struct {
	decode func(payload json.RawMessage) (event.Command, error)
	handle func(id domain.SessionID, cmd event.Command) ([]Envelope, error)
}

// newRoute binds a handler to the command type its payload decodes into.
func newRoute[C event.Command](fn func(id domain.SessionID, cmd C) ([]Envelope, error)) route {
	return route{
		decode: func(payload json.RawMessage) (event.Command, error) {
			var cmd C
			if len(payload) == 0 || string(payload) == "null" {
				return cmd, nil
			}
			if err := json.Unmarshal(payload, &cmd); err != nil {
				return nil, err
			}
			return cmd, nil
		},
		handle: func(id domain.SessionID, cmd event.Command) ([]Envelope, error) {
			return fn(id, cmd.(C))
		},
	}
}

func (o *Orchestrator) routingTable() map[event.Name]route {
	return map[event.Name]route{
		event.SendMessage:      newRoute(o.sendMessage),
		event.SendMessageAlias: newRoute(o.sendMessage),
		event.JoinPrivateChat:  newRoute(o.joinPrivateChat),
		event.SetNickname:      newRoute(o.setNickname),
		event.JoinCommonRoom:   newRoute(o.joinCommonRoom),
		event.EditMessage:      newRoute(o.editMessage),
		event.DeleteMessage:    newRoute(o.deleteMessage),
		event.LeavePrivateChat: newRoute(o.leavePrivateChat),
		event.GetChatHistory:   newRoute(o.getChatHistory),
		event.GetUserInfo:      newRoute(o.getUserInfo),
		event.GetChatStats:     newRoute(o.getChatStats),
	}
}

func (o *Orchestrator) sendMessage(id domain.SessionID, cmd event.SendMessageCommand) ([]Envelope, error) {
	message := domain.Message{
		Author:    id,
		Data:      cmd.Data,
		Type:      domain.MessageType(lo.CoalesceOrEmpty(cmd.Type, string(domain.TextMessage))),
		Timestamp: lo.CoalesceOrEmpty(string(cmd.Timestamp), domain.FormatTimestamp(o.now())),
		Room:      domain.RoomName(lo.CoalesceOrEmpty(cmd.Room, string(domain.PublicRoom))),
	}

	switch {
	case message.IsText():
		message.Data = o.censor(id, message.Data)
	case message.Type == domain.ImageMessage:
		message.Mime = o.imageMime(id, message.Data)
	default:
		if mt, err := mimetypes.Sniff(message.Data); err == nil && mt != mimetypes.Unknown {
			message.Mime = string(mt)
		}
	}

	stored, err := o.repository.Append(message)
	if err != nil {
		return nil, err
	}
	return []Envelope{o.toRoom(stored.Room, o.format(stored))}, nil
}

// censor masks forbidden words, the words found are logged with the detected language.
func (o *Orchestrator) censor(id domain.SessionID, data string) string {
	if o.moderator == nil {
		return data
	}
	sanitized, words := o.moderator.Censor(data)
	if len(words) > 0 {
		info := whatlanggo.Detect(data)
		o.log.Warn("Message censored", "session", id, "lang", info.Lang.Iso6391(), "words", words)
	}
	return sanitized
}

// imageMime returns the detected media type of an image payload.
// Payloads that are not images keep no media type.
func (o *Orchestrator) imageMime(id domain.SessionID, data string) string {
	mt, err := mimetypes.Sniff(data)
	if err != nil || !mt.IsImage() {
		o.log.Debug("Image payload not recognized", "session", id, "detected", mt, "error", err)
		return ""
	}
	if declared := mimetypes.Declared(data); declared != "" {
		if _, ok := mimetypes.Matches(declared, mt); !ok {
			o.log.Debug("Declared media type differs", "session", id, "declared", declared, "detected", mt)
		}
	}
	return string(mt)
}

func (o *Orchestrator) joinPrivateChat(id domain.SessionID, cmd event.JoinPrivateChatCommand) ([]Envelope, error) {
	target := domain.SessionID(cmd.TargetSID)
	joiner, ok := o.presence.Get(id)
	if !ok {
		o.log.Debug("Private chat requested by unknown session", "session", id)
		return nil, nil
	}
	targetSession, ok := o.presence.Get(target)
	if !ok {
		return []Envelope{errorTo(id, fmt.Sprintf("User %s not found", target))}, nil
	}

	room := domain.PrivateRoomName(id, target)
	var envelopes []Envelope

	o.registry.Join(id, room)
	if target != id && o.registry.Join(target, room) {
		envelopes = append(envelopes, toSession(target, event.PrivateChatInvitation{
			RoomName:      string(room),
			InitiatorSID:  string(id),
			InitiatorName: joiner.DisplayName(),
			TargetSID:     string(target),
			TargetName:    targetSession.DisplayName(),
		}))
	}

	var since *string
	if joiner.LastDisconnectTime != nil {
		since = lo.ToPtr(domain.FormatTimestamp(*joiner.LastDisconnectTime))
	}
	history, err := o.historyResponse(room, since, privateChatHistoryLimit)
	if err != nil {
		return nil, err
	}
	envelopes = append(envelopes, toSession(id, history))

	targetName := targetSession.DisplayName()
	if target == id {
		targetName = fmt.Sprintf("%s (Personal Time)", joiner.DisplayName())
	}
	envelopes = append(envelopes, toSession(id, event.PrivateChatJoined{
		RoomName:   string(room),
		TargetSID:  string(target),
		TargetName: targetName,
	}))
	o.log.Debug("Private chat joined", "session", id, "room", room)
	return envelopes, nil
}

func (o *Orchestrator) setNickname(id domain.SessionID, cmd event.SetNicknameCommand) ([]Envelope, error) {
	nickname, ok := o.presence.SetNickname(id, cmd.Nickname)
	if !ok {
		return nil, nil
	}
	return []Envelope{
		o.usersUpdate(),
		o.toRoom(domain.PublicRoom, event.NicknameUpdated{SID: string(id), Nickname: nickname}),
	}, nil
}

func (o *Orchestrator) joinCommonRoom(id domain.SessionID, _ event.JoinCommonRoomCommand) ([]Envelope, error) {
	if o.presence.Exists(id) {
		o.registry.Join(id, domain.PublicRoom)
	}
	history, err := o.historyResponse(domain.PublicRoom, nil, commonRoomHistoryLimit)
	if err != nil {
		return nil, err
	}
	return []Envelope{toSession(id, history)}, nil
}

func (o *Orchestrator) editMessage(id domain.SessionID, cmd event.EditMessageCommand) ([]Envelope, error) {
	edited, applied, err := o.repository.Edit(domain.MessageID(cmd.ID), cmd.Data, id)
	if err != nil {
		return nil, err
	}
	if !applied {
		o.logIgnored(id, "edit", domain.MessageID(cmd.ID))
		return nil, nil
	}
	return []Envelope{o.toRoom(edited.Room, event.MessageEdited{ID: string(edited.ID), Data: edited.Data})}, nil
}

func (o *Orchestrator) deleteMessage(id domain.SessionID, cmd event.DeleteMessageCommand) ([]Envelope, error) {
	deleted, applied, err := o.repository.Delete(domain.MessageID(cmd.ID), id)
	if err != nil {
		return nil, err
	}
	if !applied {
		o.logIgnored(id, "delete", domain.MessageID(cmd.ID))
		return nil, nil
	}
	return []Envelope{o.toRoom(deleted.Room, event.MessageDeleted{ID: string(deleted.ID)})}, nil
}

// logIgnored records why an edit or delete was dropped, the sender is never told.
func (o *Orchestrator) logIgnored(id domain.SessionID, action string, messageID domain.MessageID) {
	reason := errors.ErrUnauthorized
	if _, ok, err := o.repository.Get(messageID); err == nil && !ok {
		reason = errors.ErrNotFound
	}
	o.log.Debug("Message mutation ignored", "action", action, "session", id, "message", messageID, "reason", reason)
}

func (o *Orchestrator) leavePrivateChat(id domain.SessionID, cmd event.LeavePrivateChatCommand) ([]Envelope, error) {
	room := domain.RoomName(cmd.RoomName)
	if !room.IsPrivate() {
		o.log.Debug("Leave ignored, not a private room", "session", id, "room", room)
		return nil, nil
	}
	o.registry.Leave(id, room)
	return nil, nil
}

func (o *Orchestrator) getChatHistory(id domain.SessionID, cmd event.GetChatHistoryCommand) ([]Envelope, error) {
	room := domain.RoomName(lo.CoalesceOrEmpty(cmd.RoomName, string(domain.PublicRoom)))
	limit := defaultHistoryLimit
	if cmd.Limit.Present {
		limit = cmd.Limit.Value
	}
	history, err := o.historyResponse(room, cmd.SinceTimestamp, limit)
	if err != nil {
		return nil, err
	}
	return []Envelope{toSession(id, history)}, nil
}

func (o *Orchestrator) getUserInfo(id domain.SessionID, _ event.GetUserInfoCommand) ([]Envelope, error) {
	users := lo.Map(o.presence.Sessions(), func(s domain.Session, _ int) event.UserInfo {
		return event.UserInfo{
			SID:         string(s.ID),
			Alias:       s.Alias,
			Nickname:    s.Nickname,
			ConnectTime: domain.FormatTimestamp(s.ConnectTime),
			IPAddress:   s.Address,
			ActiveRooms: lo.Map(o.registry.RoomsOf(s.ID), func(r domain.RoomName, _ int) string {
				return string(r)
			}),
		}
	})
	return []Envelope{toSession(id, event.UserInfoResponse{Users: users})}, nil
}

func (o *Orchestrator) getChatStats(id domain.SessionID, _ event.GetChatStatsCommand) ([]Envelope, error) {
	stats, err := o.stats.Stats()
	if err != nil {
		return nil, err
	}
	return []Envelope{toSession(id, event.NewChatStatsResponse(stats))}, nil
}

func (o *Orchestrator) historyResponse(room domain.RoomName, since *string, limit int) (event.ChatHistoryResponse, error) {
	messages, err := o.repository.History(room, since, limit)
	if err != nil {
		return event.ChatHistoryResponse{}, err
	}
	total, err := o.repository.Count(room)
	if err != nil {
		return event.ChatHistoryResponse{}, err
	}
	return event.ChatHistoryResponse{
		RoomName:   string(room),
		Messages:   lo.Map(messages, func(m domain.Message, _ int) event.ChatMessage { return o.format(m) }),
		TotalCount: total,
	}, nil
}

// format renders a stored message with the current identity of its author.
// Authors that left keep their id and a derived alias.
func (o *Orchestrator) format(m domain.Message) event.ChatMessage {
	nickname, alias := "", m.Author.Alias()
	if author, ok := o.presence.Get(m.Author); ok {
		nickname, alias = author.Nickname, author.Alias
	}
	return event.ChatMessage{
		ID:        string(m.ID),
		SID:       string(m.Author),
		Nickname:  nickname,
		Alias:     alias,
		Data:      m.Data,
		Type:      string(m.Type),
		Mime:      m.Mime,
		Timestamp: m.Timestamp,
		Room:      string(m.Room),
	}
}

func (o *Orchestrator) usersUpdate() Envelope {
	users := lo.Map(o.presence.Snapshot(), func(p domain.Presence, _ int) event.User {
		return event.User{SID: string(p.ID), Alias: p.Alias, Nickname: p.Nickname}
	})
	return o.toRoom(domain.PublicRoom, event.UsersUpdate{Users: users})
}
