package roomqueue

// RoomExpiryJob ends a room that is still open when its tokens lapse.
type RoomExpiryJob struct {
	RoomCode string `json:"room_code"`
}

// Kind returns the job type identifier for River
func (RoomExpiryJob) Kind() string { return "room_expiry" }
