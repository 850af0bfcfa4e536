// pkg/model/notification.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// CompletionStatusSuccess 完成消息状态
const CompletionStatusSuccess = "SUCCESS"

// CompletionMessage 采集完成消息
type CompletionMessage struct {
	ID          string `json:"id"`
	RunID       string `json:"run_id"`
	Status      string `json:"status"`
	Source      string `json:"source"`
	CreatedDate string `json:"created_date"`
}

// NewCompletionMessage 创建完成消息
func NewCompletionMessage(runID, source string, at time.Time) CompletionMessage {
	return CompletionMessage{
		ID:          uuid.New().String(),
		RunID:       runID,
		Status:      CompletionStatusSuccess,
		Source:      source,
		CreatedDate: at.Format("2006-01-02 15:04:05"),
	}
}
