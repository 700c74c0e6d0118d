package api

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/rescue-app/rescue/internal/chat"
	"github.com/rescue-app/rescue/internal/realtime"
	"github.com/rescue-app/rescue/internal/store"
)

// ChatService implements ChatServer. It exposes the chat backend to remote
// sessions and streams room snapshots from the hub.
type ChatService struct {
	db      *store.DB
	backend *chat.LocalBackend
	stream  realtime.Stream
}

func NewChatService(db *store.DB, backend *chat.LocalBackend, stream realtime.Stream) *ChatService {
	return &ChatService{db: db, backend: backend, stream: stream}
}

func (s *ChatService) GetPointer(ctx context.Context, req *GetPointerRequest) (*PointerResponse, error) {
	me, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.backend.ChatPointer(ctx, me, req.PeerID)
	if err != nil {
		return nil, toStatus("get pointer", err)
	}
	return &PointerResponse{Pointer: p}, nil
}

// CreateRoom writes the caller's pointer and the peer's mirror pointer.
func (s *ChatService) CreateRoom(ctx context.Context, req *CreateRoomRequest) (*CreateRoomResponse, error) {
	me, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	mine, theirs := req.Mine, req.Theirs
	if mine.OwnerID != me || theirs.PeerID != me || theirs.OwnerID != mine.PeerID {
		return nil, grpcstatus.Error(codes.InvalidArgument, "pointers must pair the caller with one peer")
	}
	if mine.PeerID == "" || mine.PeerID == me {
		return nil, grpcstatus.Error(codes.InvalidArgument, "a different peer is required")
	}
	if _, err := s.db.GetUser(ctx, mine.PeerID); err != nil {
		return nil, toStatus("create room", err)
	}
	// Room ids are always minted here; a proposed id could name someone
	// else's room.
	mine.RoomID, theirs.RoomID = "", ""
	roomID, err := s.backend.CreateRoom(ctx, mine, theirs)
	if err != nil {
		return nil, toStatus("create room", err)
	}
	return &CreateRoomResponse{RoomID: roomID}, nil
}

func (s *ChatService) Append(ctx context.Context, req *AppendRequest) (*Empty, error) {
	me, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	m := req.Message
	if m.FromID != me {
		return nil, grpcstatus.Error(codes.PermissionDenied, "messages must be sent as the caller")
	}
	if m.Body == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "message body is required")
	}
	peerID, err := s.roomPeer(ctx, me, m.RoomID)
	if err != nil {
		return nil, err
	}
	switch m.ToID {
	case "":
		m.ToID = peerID
	case peerID:
	default:
		return nil, grpcstatus.Error(codes.InvalidArgument, "messages must be addressed to the room's other participant")
	}
	if err := s.backend.AppendMessage(ctx, m); err != nil {
		return nil, toStatus("append message", err)
	}
	return &Empty{}, nil
}

// UpdateSummary sets the last message of one side of a conversation. The
// sender updates both sides, so the caller may be either participant.
func (s *ChatService) UpdateSummary(ctx context.Context, req *UpdateSummaryRequest) (*Empty, error) {
	me, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if me != req.OwnerID && me != req.PeerID {
		return nil, grpcstatus.Error(codes.PermissionDenied, "not a participant of this conversation")
	}
	if err := s.backend.UpdateLastMessage(ctx, req.OwnerID, req.PeerID, req.Text, req.SentAt); err != nil {
		return nil, toStatus("update summary", err)
	}
	return &Empty{}, nil
}

func (s *ChatService) ListChats(ctx context.Context, _ *Empty) (*ListChatsResponse, error) {
	me, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	chats, err := s.backend.ListPointers(ctx, me)
	if err != nil {
		return nil, toStatus("list chats", err)
	}
	return &ListChatsResponse{Chats: chats}, nil
}

// WatchRoom sends the room's full message set now and after every change
// until the client goes away. Slow clients only see the latest snapshot.
func (s *ChatService) WatchRoom(req *WatchRoomRequest, stream grpc.ServerStream) error {
	ctx := stream.Context()
	me, err := callerID(ctx)
	if err != nil {
		return err
	}
	if _, err := s.roomPeer(ctx, me, req.RoomID); err != nil {
		return err
	}

	latest := make(chan realtime.Snapshot, 1)
	h, err := s.stream.Subscribe(ctx, req.RoomID, func(snap realtime.Snapshot) {
		select {
		case <-latest:
		default:
		}
		latest <- snap
	})
	if err != nil {
		return toStatus("watch room", err)
	}
	defer s.stream.Unsubscribe(h)

	for {
		select {
		case snap := <-latest:
			if err := stream.SendMsg(&snap); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// roomPeer checks that userID belongs to roomID and returns the other
// participant.
func (s *ChatService) roomPeer(ctx context.Context, userID, roomID string) (string, error) {
	if roomID == "" {
		return "", grpcstatus.Error(codes.InvalidArgument, "room id is required")
	}
	peerID, err := s.db.RoomPeer(ctx, userID, roomID)
	if errors.Is(err, store.ErrNotFound) {
		return "", grpcstatus.Error(codes.PermissionDenied, "not a member of this room")
	}
	if err != nil {
		return "", toStatus("room membership", err)
	}
	return peerID, nil
}
