package roomhandlers

import (
	"context"

	roomservice "github.com/Black-And-White-Club/reverse-chorus/app/modules/room/application"
	"github.com/Black-And-White-Club/reverse-chorus/internal/gametypes"
	"github.com/google/uuid"
)

// ------------------------
// Fake Room Service
// ------------------------

type FakeService struct {
	trace []string

	CreateRoomFunc   func(ctx context.Context, hostName string) (*roomservice.CreateRoomResult, error)
	JoinRoomFunc     func(ctx context.Context, code, name string) (*roomservice.JoinRoomResult, error)
	GetRoomFunc      func(ctx context.Context, code string) (*gametypes.Room, error)
	RemovePlayerFunc func(ctx context.Context, code string, playerID uuid.UUID) (*gametypes.Room, error)
	EndGameFunc      func(ctx context.Context, code string, requesterID uuid.UUID) (*roomservice.EndGameResult, error)
	JoinQRCodeFunc   func(ctx context.Context, code string) ([]byte, error)
}

var _ roomservice.Service = (*FakeService)(nil)

func (f *FakeService) Trace() []string { return f.trace }

func (f *FakeService) record(step string) { f.trace = append(f.trace, step) }

func (f *FakeService) CreateRoom(ctx context.Context, hostName string) (*roomservice.CreateRoomResult, error) {
	f.record("CreateRoom")
	if f.CreateRoomFunc != nil {
		return f.CreateRoomFunc(ctx, hostName)
	}
	return &roomservice.CreateRoomResult{Room: &gametypes.Room{Code: "ABC123"}}, nil
}

func (f *FakeService) JoinRoom(ctx context.Context, code, name string) (*roomservice.JoinRoomResult, error) {
	f.record("JoinRoom")
	if f.JoinRoomFunc != nil {
		return f.JoinRoomFunc(ctx, code, name)
	}
	return &roomservice.JoinRoomResult{Room: &gametypes.Room{Code: code}}, nil
}

func (f *FakeService) GetRoom(ctx context.Context, code string) (*gametypes.Room, error) {
	f.record("GetRoom")
	if f.GetRoomFunc != nil {
		return f.GetRoomFunc(ctx, code)
	}
	return &gametypes.Room{Code: code}, nil
}

func (f *FakeService) RemovePlayer(ctx context.Context, code string, playerID uuid.UUID) (*gametypes.Room, error) {
	f.record("RemovePlayer")
	if f.RemovePlayerFunc != nil {
		return f.RemovePlayerFunc(ctx, code, playerID)
	}
	return &gametypes.Room{Code: code}, nil
}

func (f *FakeService) Refresh(ctx context.Context, code string) (*gametypes.Room, error) {
	f.record("Refresh")
	return &gametypes.Room{Code: code}, nil
}

func (f *FakeService) EndGame(ctx context.Context, code string, requesterID uuid.UUID) (*roomservice.EndGameResult, error) {
	f.record("EndGame")
	if f.EndGameFunc != nil {
		return f.EndGameFunc(ctx, code, requesterID)
	}
	return &roomservice.EndGameResult{Room: &gametypes.Room{Code: code}}, nil
}

func (f *FakeService) ExpireRoom(ctx context.Context, code string) (bool, error) {
	f.record("ExpireRoom")
	return false, nil
}

func (f *FakeService) JoinQRCode(ctx context.Context, code string) ([]byte, error) {
	f.record("JoinQRCode")
	if f.JoinQRCodeFunc != nil {
		return f.JoinQRCodeFunc(ctx, code)
	}
	return []byte("\x89PNG"), nil
}
