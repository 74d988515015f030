package room

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Firestore collection names.
const (
	collectionRooms      = "rooms"
	collectionPlayers    = "players"
	collectionChat       = "chat"
	collectionTeams      = "teams"
	collectionUsers      = "users"
	collectionReadStatus = "readStatus"
	collectionGames      = "games"
	collectionQuestions  = "questions"
	collectionAnswers    = "answers"
)

type roomDoc struct {
	HostID    string    `firestore:"hostId"`
	TeamID    string    `firestore:"teamId,omitempty"`
	Status    string    `firestore:"status"`
	CreatedAt time.Time `firestore:"createdAt"`
}

type playerDoc struct {
	ID    string  `firestore:"id"`
	Name  string  `firestore:"name"`
	Score float64 `firestore:"score"`
}

type chatDoc struct {
	PlayerID   string    `firestore:"playerId"`
	PlayerName string    `firestore:"playerName"`
	Text       string    `firestore:"text"`
	Type       string    `firestore:"type"`
	SentAt     time.Time `firestore:"sentAt"`
}

type readStatusDoc struct {
	LastReadAt time.Time `firestore:"lastReadAt"`
}

// FirestoreDirectory is a Firestore implementation of Directory and Sweeper.
//
// Layout:
//
//	rooms/{code}                      hostId, teamId, status, createdAt
//	rooms/{code}/players/{uid}        id, name, score
//	rooms/{code}/chat/{messageId}     playerId, playerName, text, type, sentAt
//	teams/{teamId}                    memberIds
//	users/{uid}/readStatus/{code}     lastReadAt
type FirestoreDirectory struct {
	client *firestore.Client
}

// NewFirestoreDirectory creates a new Firestore room directory.
func NewFirestoreDirectory(client *firestore.Client) *FirestoreDirectory {
	return &FirestoreDirectory{client: client}
}

// GetRoom retrieves a room by code.
func (d *FirestoreDirectory) GetRoom(ctx context.Context, code string) (*Room, error) {
	snap, err := d.client.Collection(collectionRooms).Doc(code).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("get room %s: %w", code, err)
	}

	var doc roomDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode room %s: %w", code, err)
	}

	return &Room{
		Code:      snap.Ref.ID,
		HostID:    doc.HostID,
		TeamID:    doc.TeamID,
		Status:    Status(doc.Status),
		CreatedAt: doc.CreatedAt,
	}, nil
}

// GetMessage retrieves a single chat message of a room.
func (d *FirestoreDirectory) GetMessage(ctx context.Context, code, messageID string) (*ChatMessage, error) {
	snap, err := d.chat(code).Doc(messageID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("get message %s/%s: %w", code, messageID, err)
	}

	return decodeMessage(code, snap)
}

// ListPlayers returns the players of a room.
func (d *FirestoreDirectory) ListPlayers(ctx context.Context, code string) ([]*Player, error) {
	snaps, err := d.client.Collection(collectionRooms).Doc(code).Collection(collectionPlayers).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list players of %s: %w", code, err)
	}

	players := make([]*Player, 0, len(snaps))
	for _, snap := range snaps {
		var doc playerDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode player %s: %w", snap.Ref.ID, err)
		}
		players = append(players, &Player{
			ID:       snap.Ref.ID,
			RoomCode: code,
			Name:     doc.Name,
			Score:    doc.Score,
		})
	}
	return players, nil
}

// ListHostedRooms returns the codes of rooms hosted by the user.
func (d *FirestoreDirectory) ListHostedRooms(ctx context.Context, userID string) ([]string, error) {
	snaps, err := d.client.Collection(collectionRooms).
		Where("hostId", "==", userID).
		Select().
		Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list hosted rooms: %w", err)
	}

	codes := make([]string, 0, len(snaps))
	for _, snap := range snaps {
		codes = append(codes, snap.Ref.ID)
	}
	return codes, nil
}

// ListJoinedRooms returns the codes of rooms where the user is a player.
// Uses a collection group query over every room's players sub-collection.
func (d *FirestoreDirectory) ListJoinedRooms(ctx context.Context, userID string) ([]string, error) {
	snaps, err := d.client.CollectionGroup(collectionPlayers).
		Where("id", "==", userID).
		Select().
		Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list joined rooms: %w", err)
	}

	codes := make([]string, 0, len(snaps))
	for _, snap := range snaps {
		// rooms/{code}/players/{uid}
		if parent := snap.Ref.Parent.Parent; parent != nil {
			codes = append(codes, parent.ID)
		}
	}
	return codes, nil
}

// ListTeamIDs returns the teams the user is a member of.
func (d *FirestoreDirectory) ListTeamIDs(ctx context.Context, userID string) ([]string, error) {
	snaps, err := d.client.Collection(collectionTeams).
		Where("memberIds", "array-contains", userID).
		Select().
		Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}

	ids := make([]string, 0, len(snaps))
	for _, snap := range snaps {
		ids = append(ids, snap.Ref.ID)
	}
	return ids, nil
}

// ListRoomsByTeams returns the codes of rooms belonging to any of the teams.
func (d *FirestoreDirectory) ListRoomsByTeams(ctx context.Context, teamIDs []string) ([]string, error) {
	if len(teamIDs) == 0 {
		return nil, nil
	}
	if len(teamIDs) > MaxInFilterValues {
		return nil, ErrTooManyFilterValues
	}

	snaps, err := d.client.Collection(collectionRooms).
		Where("teamId", "in", teamIDs).
		Select().
		Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list team rooms: %w", err)
	}

	codes := make([]string, 0, len(snaps))
	for _, snap := range snaps {
		codes = append(codes, snap.Ref.ID)
	}
	return codes, nil
}

// ListMessages returns the chat messages of a room, optionally only those sent after a timestamp.
func (d *FirestoreDirectory) ListMessages(ctx context.Context, code string, after *time.Time) ([]*ChatMessage, error) {
	query := d.chat(code).Query
	if after != nil {
		query = query.Where("sentAt", ">", *after)
	}

	snaps, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list messages of %s: %w", code, err)
	}

	msgs := make([]*ChatMessage, 0, len(snaps))
	for _, snap := range snaps {
		m, err := decodeMessage(code, snap)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// LastReadTimes returns the user's last-read timestamp per room code.
func (d *FirestoreDirectory) LastReadTimes(ctx context.Context, userID string) (map[string]time.Time, error) {
	snaps, err := d.client.Collection(collectionUsers).Doc(userID).Collection(collectionReadStatus).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list read status: %w", err)
	}

	out := make(map[string]time.Time, len(snaps))
	for _, snap := range snaps {
		var doc readStatusDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode read status %s: %w", snap.Ref.ID, err)
		}
		if !doc.LastReadAt.IsZero() {
			out[snap.Ref.ID] = doc.LastReadAt
		}
	}
	return out, nil
}

// DeleteFinishedBefore deletes finished rooms created before cutoff, along with
// their players, chat and recorded game answers.
func (d *FirestoreDirectory) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	snaps, err := d.client.Collection(collectionRooms).
		Where("createdAt", "<", cutoff).
		Where("status", "==", string(StatusFinished)).
		Documents(ctx).GetAll()
	if err != nil {
		return 0, fmt.Errorf("query finished rooms: %w", err)
	}
	if len(snaps) == 0 {
		return 0, nil
	}

	var refs []*firestore.DocumentRef
	for _, snap := range snaps {
		roomRefs, err := d.roomTree(ctx, snap.Ref)
		if err != nil {
			return 0, err
		}
		refs = append(refs, roomRefs...)
	}

	bw := d.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(refs))
	for _, ref := range refs {
		job, err := bw.Delete(ref)
		if err != nil {
			bw.End()
			return 0, fmt.Errorf("enqueue delete %s: %w", ref.Path, err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return 0, fmt.Errorf("delete room documents: %w", err)
		}
	}

	return len(snaps), nil
}

// roomTree lists the documents belonging to a room, children before parents.
func (d *FirestoreDirectory) roomTree(ctx context.Context, roomRef *firestore.DocumentRef) ([]*firestore.DocumentRef, error) {
	var refs []*firestore.DocumentRef

	for _, sub := range []string{collectionPlayers, collectionChat} {
		children, err := roomRef.Collection(sub).DocumentRefs(ctx).GetAll()
		if err != nil {
			return nil, fmt.Errorf("list %s of %s: %w", sub, roomRef.ID, err)
		}
		refs = append(refs, children...)
	}

	gameRef := d.client.Collection(collectionGames).Doc(roomRef.ID)
	questions, err := gameRef.Collection(collectionQuestions).DocumentRefs(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list questions of %s: %w", roomRef.ID, err)
	}
	for _, q := range questions {
		answers, err := q.Collection(collectionAnswers).DocumentRefs(ctx).GetAll()
		if err != nil {
			return nil, fmt.Errorf("list answers of %s: %w", q.Path, err)
		}
		refs = append(refs, answers...)
		refs = append(refs, q)
	}

	return append(refs, gameRef, roomRef), nil
}

func (d *FirestoreDirectory) chat(code string) *firestore.CollectionRef {
	return d.client.Collection(collectionRooms).Doc(code).Collection(collectionChat)
}

func decodeMessage(code string, snap *firestore.DocumentSnapshot) (*ChatMessage, error) {
	var doc chatDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode message %s: %w", snap.Ref.ID, err)
	}

	msgType := MessageType(doc.Type)
	if msgType == "" {
		msgType = MessageTypeChat
	}

	return &ChatMessage{
		ID:         snap.Ref.ID,
		RoomCode:   code,
		SenderID:   doc.PlayerID,
		SenderName: doc.PlayerName,
		Text:       doc.Text,
		Type:       msgType,
		SentAt:     doc.SentAt,
	}, nil
}

// Ensure FirestoreDirectory implements Directory and Sweeper.
var (
	_ Directory = (*FirestoreDirectory)(nil)
	_ Sweeper   = (*FirestoreDirectory)(nil)
)
