package chat

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/hedspi/phone-assistant/internal/domain/chat"
	"github.com/hedspi/phone-assistant/internal/pkg/dbctx"
	"github.com/hedspi/phone-assistant/internal/platform/logger"
)

type MessageRepo interface {
	Append(dbc dbctx.Context, sessionID string, msgs ...types.Message) error
	ListBySession(dbc dbctx.Context, sessionID string, limit int) ([]*types.ChatMessage, error)
	DeleteBySession(dbc dbctx.Context, sessionID string) (int64, error)
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, log *logger.Logger) MessageRepo {
	return &messageRepo{db: db, log: log.With("repo", "MessageRepo")}
}

// Append stores msgs after the session's current last seq inside one transaction.
func (r *messageRepo) Append(dbc dbctx.Context, sessionID string, msgs ...types.Message) error {
	if sessionID == "" || len(msgs) == 0 {
		return nil
	}
	return dbc.Conn(r.db).Transaction(func(tx *gorm.DB) error {
		var maxSeq int64
		if err := tx.Model(&types.ChatMessage{}).
			Where("session_id = ?", sessionID).
			Select("COALESCE(MAX(seq), 0)").
			Scan(&maxSeq).Error; err != nil {
			return fmt.Errorf("read max seq: %w", err)
		}
		rows := make([]*types.ChatMessage, 0, len(msgs))
		for i, m := range msgs {
			rows = append(rows, &types.ChatMessage{
				SessionID: sessionID,
				Seq:       maxSeq + int64(i) + 1,
				Role:      string(m.Role),
				Content:   m.Content,
			})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("insert messages: %w", err)
		}
		return nil
	})
}

// ListBySession returns the transcript in seq order. limit <= 0 returns all rows.
func (r *messageRepo) ListBySession(dbc dbctx.Context, sessionID string, limit int) ([]*types.ChatMessage, error) {
	var out []*types.ChatMessage
	q := dbc.Conn(r.db).Where("session_id = ?", sessionID).Order("seq ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *messageRepo) DeleteBySession(dbc dbctx.Context, sessionID string) (int64, error) {
	res := dbc.Conn(r.db).Where("session_id = ?", sessionID).Delete(&types.ChatMessage{})
	return res.RowsAffected, res.Error
}
