package service

import (
	"context"
	"sync"
	"time"

	"flow-vce/internal/domain/models"
	"flow-vce/internal/domain/services"
	"flow-vce/internal/infrastructure/claude"
	"flow-vce/pkg/logger"
	"flow-vce/pkg/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxHistoryTurns = 10               // 会话中保留的最近消息数
	sessionTTL      = 2 * time.Hour    // 会话不活跃多久后清理
	sweepInterval   = 30 * time.Minute // 清理间隔
)

// MessageSender 发送对话并返回文本回复
type MessageSender interface {
	SendMessage(ctx context.Context, apiKey, system string, messages []claude.Message) (string, error)
}

// AIService 提供站点生成和精修服务
type AIService struct {
	client   MessageSender
	sessions map[string]*models.RefinementSession
	mu       sync.RWMutex
	done     chan struct{}
	stopOnce sync.Once
}

// NewAIService 创建新的AI服务实例
func NewAIService(client MessageSender) *AIService {
	service := &AIService{
		client:   client,
		sessions: make(map[string]*models.RefinementSession),
		done:     make(chan struct{}),
	}

	// 启动定期清理过期会话的后台任务
	go service.cleanupExpiredSessions()

	return service
}

// Close 停止后台清理任务
func (s *AIService) Close() {
	s.stopOnce.Do(func() { close(s.done) })
}

// cleanupExpiredSessions 定期清理过期会话
func (s *AIService) cleanupExpiredSessions() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.sweep(now)
		}
	}
}

// sweep 清理在 now 之前超过 TTL 未活跃的会话
func (s *AIService) sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, session := range s.sessions {
		if now.Sub(session.UpdatedAt) > sessionTTL {
			delete(s.sessions, id)
			removed++
			logger.Debug("清理过期AI会话", zap.String("session_id", id))
		}
	}
	return removed
}

// GenerateSite 根据提示词生成站点，返回站点和新建的会话 ID
func (s *AIService) GenerateSite(ctx context.Context, apiKey, prompt string) (*types.GeneratedSite, string, error) {
	userMsg := services.BuildGeneratePrompt(prompt)

	reply, err := s.client.SendMessage(ctx, apiKey, services.GenerateSystemPrompt,
		[]claude.Message{{Role: "user", Content: userMsg}})
	if err != nil {
		logger.Error("调用Claude API生成站点失败", zap.Error(err))
		return nil, "", err
	}

	site, err := services.ParseSiteReply(reply)
	if err != nil {
		logger.Warn("解析Claude回复失败", zap.Error(err), zap.Int("reply_length", len(reply)))
		return nil, "", err
	}

	sessionID := uuid.NewString()
	s.record(sessionID, userMsg, reply)
	logger.Info("站点生成完成",
		zap.String("session_id", sessionID),
		zap.String("title", site.Metadata.Title))
	return site, sessionID, nil
}

// RefineSite 按请求修改站点，sessionID 为空或已过期时新建会话；tree 为项目目录结构，可为空
func (s *AIService) RefineSite(ctx context.Context, apiKey, sessionID string, current *types.GeneratedSite, request, tree string) (*types.GeneratedSite, string, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	userMsg := services.BuildRefinePrompt(current, request, tree)

	messages := append(s.history(sessionID), claude.Message{Role: "user", Content: userMsg})
	logger.Debug("精修站点",
		zap.String("session_id", sessionID),
		zap.Int("message_count", len(messages)))

	reply, err := s.client.SendMessage(ctx, apiKey, services.RefineSystemPrompt, messages)
	if err != nil {
		logger.Error("调用Claude API精修站点失败", zap.Error(err))
		return nil, sessionID, err
	}

	site, err := services.ParseSiteReply(reply)
	if err != nil {
		logger.Warn("解析Claude回复失败", zap.Error(err), zap.Int("reply_length", len(reply)))
		return nil, sessionID, err
	}

	s.record(sessionID, userMsg, reply)
	return site, sessionID, nil
}

// history 返回会话最近的消息，保证以 user 消息开头
func (s *AIService) history(sessionID string) []claude.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}

	turns := session.Turns
	if len(turns) > maxHistoryTurns {
		turns = turns[len(turns)-maxHistoryTurns:]
	}
	for len(turns) > 0 && turns[0].Role != "user" {
		turns = turns[1:]
	}

	out := make([]claude.Message, len(turns))
	for i, t := range turns {
		out[i] = claude.Message{Role: t.Role, Content: t.Content}
	}
	return out
}

// record 追加一轮问答并裁剪历史
func (s *AIService) record(sessionID, userMsg, reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		session = &models.RefinementSession{ID: sessionID}
		s.sessions[sessionID] = session
		logger.Debug("创建新的AI会话", zap.String("session_id", sessionID))
	}
	session.Turns = append(session.Turns,
		models.Turn{Role: "user", Content: userMsg},
		models.Turn{Role: "assistant", Content: reply})
	if len(session.Turns) > maxHistoryTurns {
		session.Turns = append([]models.Turn(nil), session.Turns[len(session.Turns)-maxHistoryTurns:]...)
	}
	session.UpdatedAt = time.Now()
}

// SessionCount 返回当前活跃会话数
func (s *AIService) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
