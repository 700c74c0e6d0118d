package api

import (
	"context"

	"google.golang.org/grpc"

	"github.com/rescue-app/rescue/internal/feed"
	"github.com/rescue-app/rescue/internal/media"
)

// Full method names, as seen by interceptors and used by the client.
const (
	AccountRegister       = "/rescue.v1.AccountService/Register"
	AccountLogin          = "/rescue.v1.AccountService/Login"
	AccountGetProfile     = "/rescue.v1.AccountService/GetProfile"
	AccountUpdateProfile  = "/rescue.v1.AccountService/UpdateProfile"
	AccountFollow         = "/rescue.v1.AccountService/Follow"
	AccountUnfollow       = "/rescue.v1.AccountService/Unfollow"
	AccountRegisterDevice = "/rescue.v1.AccountService/RegisterDevice"
	AccountUploadURL      = "/rescue.v1.AccountService/UploadURL"

	FeedFetch = "/rescue.v1.FeedService/Fetch"

	PostCreate       = "/rescue.v1.PostService/Create"
	PostGet          = "/rescue.v1.PostService/Get"
	PostUpdateStatus = "/rescue.v1.PostService/UpdateStatus"
	PostDelete       = "/rescue.v1.PostService/Delete"
	PostReport       = "/rescue.v1.PostService/Report"

	ChatGetPointer    = "/rescue.v1.ChatService/GetPointer"
	ChatCreateRoom    = "/rescue.v1.ChatService/CreateRoom"
	ChatAppend        = "/rescue.v1.ChatService/Append"
	ChatUpdateSummary = "/rescue.v1.ChatService/UpdateSummary"
	ChatListChats     = "/rescue.v1.ChatService/ListChats"
	ChatWatchRoom     = "/rescue.v1.ChatService/WatchRoom"

	HealthPing = "/rescue.v1.HealthService/Ping"
)

// PublicMethods can be called without a bearer token.
var PublicMethods = map[string]bool{
	AccountRegister: true,
	AccountLogin:    true,
	HealthPing:      true,
}

type AccountServer interface {
	Register(context.Context, *RegisterRequest) (*AuthResponse, error)
	Login(context.Context, *LoginRequest) (*AuthResponse, error)
	GetProfile(context.Context, *GetProfileRequest) (*UserProfile, error)
	UpdateProfile(context.Context, *UpdateProfileRequest) (*UserProfile, error)
	Follow(context.Context, *FollowRequest) (*Empty, error)
	Unfollow(context.Context, *FollowRequest) (*Empty, error)
	RegisterDevice(context.Context, *RegisterDeviceRequest) (*Empty, error)
	UploadURL(context.Context, *UploadURLRequest) (*media.Upload, error)
}

type FeedServer interface {
	Fetch(context.Context, *FetchRequest) (*feed.Page, error)
}

type PostServer interface {
	Create(context.Context, *CreatePostRequest) (*feed.Post, error)
	Get(context.Context, *PostRequest) (*feed.Post, error)
	UpdateStatus(context.Context, *UpdateStatusRequest) (*feed.Post, error)
	Delete(context.Context, *PostRequest) (*Empty, error)
	Report(context.Context, *ReportRequest) (*Empty, error)
}

type ChatServer interface {
	GetPointer(context.Context, *GetPointerRequest) (*PointerResponse, error)
	CreateRoom(context.Context, *CreateRoomRequest) (*CreateRoomResponse, error)
	Append(context.Context, *AppendRequest) (*Empty, error)
	UpdateSummary(context.Context, *UpdateSummaryRequest) (*Empty, error)
	ListChats(context.Context, *Empty) (*ListChatsResponse, error)
	WatchRoom(*WatchRoomRequest, grpc.ServerStream) error
}

type HealthServer interface {
	Ping(context.Context, *Empty) (*PingResponse, error)
}

// Register attaches every service to srv.
func Register(srv *grpc.Server, account AccountServer, feeds FeedServer, posts PostServer, chats ChatServer, health HealthServer) {
	srv.RegisterService(&AccountServiceDesc, account)
	srv.RegisterService(&FeedServiceDesc, feeds)
	srv.RegisterService(&PostServiceDesc, posts)
	srv.RegisterService(&ChatServiceDesc, chats)
	srv.RegisterService(&HealthServiceDesc, health)
}

// unaryHandler adapts a service method to grpc.MethodHandler.
func unaryHandler[S, Req, Resp any](fullMethod string, call func(S, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(S), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(S), ctx, req.(*Req))
		})
	}
}

var AccountServiceDesc = grpc.ServiceDesc{
	ServiceName: "rescue.v1.AccountService",
	HandlerType: (*AccountServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Register", Handler: unaryHandler(AccountRegister, AccountServer.Register)},
		{MethodName: "Login", Handler: unaryHandler(AccountLogin, AccountServer.Login)},
		{MethodName: "GetProfile", Handler: unaryHandler(AccountGetProfile, AccountServer.GetProfile)},
		{MethodName: "UpdateProfile", Handler: unaryHandler(AccountUpdateProfile, AccountServer.UpdateProfile)},
		{MethodName: "Follow", Handler: unaryHandler(AccountFollow, AccountServer.Follow)},
		{MethodName: "Unfollow", Handler: unaryHandler(AccountUnfollow, AccountServer.Unfollow)},
		{MethodName: "RegisterDevice", Handler: unaryHandler(AccountRegisterDevice, AccountServer.RegisterDevice)},
		{MethodName: "UploadURL", Handler: unaryHandler(AccountUploadURL, AccountServer.UploadURL)},
	},
	Metadata: "rescue/v1/account.json",
}

var FeedServiceDesc = grpc.ServiceDesc{
	ServiceName: "rescue.v1.FeedService",
	HandlerType: (*FeedServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Fetch", Handler: unaryHandler(FeedFetch, FeedServer.Fetch)},
	},
	Metadata: "rescue/v1/feed.json",
}

var PostServiceDesc = grpc.ServiceDesc{
	ServiceName: "rescue.v1.PostService",
	HandlerType: (*PostServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Create", Handler: unaryHandler(PostCreate, PostServer.Create)},
		{MethodName: "Get", Handler: unaryHandler(PostGet, PostServer.Get)},
		{MethodName: "UpdateStatus", Handler: unaryHandler(PostUpdateStatus, PostServer.UpdateStatus)},
		{MethodName: "Delete", Handler: unaryHandler(PostDelete, PostServer.Delete)},
		{MethodName: "Report", Handler: unaryHandler(PostReport, PostServer.Report)},
	},
	Metadata: "rescue/v1/post.json",
}

// WatchRoomStream describes the server stream of ChatService.WatchRoom.
var WatchRoomStream = grpc.StreamDesc{
	StreamName:    "WatchRoom",
	ServerStreams: true,
	Handler: func(srv any, stream grpc.ServerStream) error {
		in := new(WatchRoomRequest)
		if err := stream.RecvMsg(in); err != nil {
			return err
		}
		return srv.(ChatServer).WatchRoom(in, stream)
	},
}

var ChatServiceDesc = grpc.ServiceDesc{
	ServiceName: "rescue.v1.ChatService",
	HandlerType: (*ChatServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetPointer", Handler: unaryHandler(ChatGetPointer, ChatServer.GetPointer)},
		{MethodName: "CreateRoom", Handler: unaryHandler(ChatCreateRoom, ChatServer.CreateRoom)},
		{MethodName: "Append", Handler: unaryHandler(ChatAppend, ChatServer.Append)},
		{MethodName: "UpdateSummary", Handler: unaryHandler(ChatUpdateSummary, ChatServer.UpdateSummary)},
		{MethodName: "ListChats", Handler: unaryHandler(ChatListChats, ChatServer.ListChats)},
	},
	Streams:  []grpc.StreamDesc{WatchRoomStream},
	Metadata: "rescue/v1/chat.json",
}

var HealthServiceDesc = grpc.ServiceDesc{
	ServiceName: "rescue.v1.HealthService",
	HandlerType: (*HealthServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Ping", Handler: unaryHandler(HealthPing, HealthServer.Ping)},
	},
	Metadata: "rescue/v1/health.json",
}
