package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"idlemsg/internal/logger"
	"idlemsg/pkg/api"
	"idlemsg/pkg/model"
)

// Server 基于stdio的MCP工具服务
type Server struct {
	svc api.Service
	sid model.SessionID
	log logger.Logger
	mcp *server.MCPServer
}

// New 创建工具服务并注册全部工具
func New(svc api.Service, sid model.SessionID, l logger.Logger) *Server {
	if l == nil {
		l = logger.NewNop()
	}
	s := &Server{
		svc: svc,
		sid: sid,
		log: l,
		mcp: server.NewMCPServer("idlemsg", "1.0.0", server.WithToolCapabilities(false)),
	}
	s.registerTools()
	return s
}

// Serve 在stdio上提供服务，阻塞直到连接关闭
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("get_conversations",
		mcp.WithDescription("获取闲鱼会话列表，按可回复性和活跃度排序"),
		mcp.WithNumber("limit", mcp.Description("返回的会话数量上限，默认20")),
	), s.handleGetConversations)

	s.mcp.AddTool(mcp.NewTool("get_messages",
		mcp.WithDescription("获取指定会话的消息列表"),
		mcp.WithString("conversation_id", mcp.Required(), mcp.Description("会话ID、用户ID或用户名")),
		mcp.WithNumber("limit", mcp.Description("返回的消息数量上限，默认50")),
	), s.handleGetMessages)

	s.mcp.AddTool(mcp.NewTool("warm_context",
		mcp.WithDescription("预先打开会话以捕获商品上下文"),
		mcp.WithString("conversation_id", mcp.Required(), mcp.Description("会话ID、用户ID或用户名")),
	), s.handleWarmContext)

	s.mcp.AddTool(mcp.NewTool("get_unread_count",
		mcp.WithDescription("获取未读消息总数"),
	), s.handleUnreadCount)

	s.mcp.AddTool(mcp.NewTool("send_reply",
		mcp.WithDescription("向指定会话发送文本回复"),
		mcp.WithString("conversation_id", mcp.Required(), mcp.Description("会话ID、用户ID或用户名")),
		mcp.WithString("content", mcp.Required(), mcp.Description("要发送的文本内容")),
	), s.handleSendReply)

	s.mcp.AddTool(mcp.NewTool("check_status",
		mcp.WithDescription("检查页面是否出现人工验证拦截"),
	), s.handleCheckStatus)
}

// envelope 工具返回的统一结构
type envelope struct {
	Success                    bool   `json:"success"`
	RequiresManualVerification bool   `json:"requires_manual_verification"`
	Message                    string `json:"message,omitempty"`
	Items                      any    `json:"items,omitempty"`
	Count                      int    `json:"count"`
}

func (s *Server) reply(env envelope) (*mcp.CallToolResult, error) {
	out, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("序列化结果失败: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) replyErr(err error) (*mcp.CallToolResult, error) {
	s.log.Err(err, "工具调用失败")
	return s.reply(envelope{Success: false, Message: err.Error()})
}

func (s *Server) handleGetConversations(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 20)
	res, err := s.svc.GetConversations(s.sid, limit)
	if err != nil {
		return s.replyErr(err)
	}
	return s.reply(envelope{
		Success:                    true,
		RequiresManualVerification: res.RequiresManualVerification(),
		Message:                    res.BlockReason,
		Items:                      res.Conversations,
		Count:                      len(res.Conversations),
	})
}

func (s *Server) handleGetMessages(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	convID, err := req.RequireString("conversation_id")
	if err != nil {
		return s.replyErr(err)
	}
	limit := req.GetInt("limit", 50)
	res, err := s.svc.GetMessages(s.sid, convID, limit)
	if err != nil {
		return s.replyErr(err)
	}
	return s.reply(envelope{
		Success:                    true,
		RequiresManualVerification: res.RequiresManualVerification(),
		Message:                    res.BlockReason,
		Items:                      res.Messages,
		Count:                      len(res.Messages),
	})
}

func (s *Server) handleWarmContext(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	convID, err := req.RequireString("conversation_id")
	if err != nil {
		return s.replyErr(err)
	}
	if err := s.svc.WarmContext(s.sid, convID); err != nil {
		return s.replyErr(err)
	}
	return s.reply(envelope{Success: true, Message: "上下文已预热"})
}

func (s *Server) handleUnreadCount(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.svc.UnreadCount(s.sid)
	if err != nil {
		return s.replyErr(err)
	}
	return s.reply(envelope{
		Success:                    true,
		RequiresManualVerification: res.BlockReason != "",
		Message:                    res.BlockReason,
		Count:                      res.Total,
	})
}

func (s *Server) handleSendReply(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	convID, err := req.RequireString("conversation_id")
	if err != nil {
		return s.replyErr(err)
	}
	content, err := req.RequireString("content")
	if err != nil {
		return s.replyErr(err)
	}
	ok, msg, err := s.svc.SendReply(s.sid, convID, content)
	if err != nil {
		return s.replyErr(err)
	}
	return s.reply(envelope{Success: ok, Message: msg})
}

func (s *Server) handleCheckStatus(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.svc.GetConversations(s.sid, 1)
	if err != nil {
		return s.replyErr(err)
	}
	msg := "页面正常"
	if res.BlockReason != "" {
		msg = res.BlockReason
	}
	return s.reply(envelope{
		Success:                    true,
		RequiresManualVerification: res.RequiresManualVerification(),
		Message:                    msg,
	})
}
