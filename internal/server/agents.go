package server

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/balamir53/snackforge/internal/builder"
	"github.com/balamir53/snackforge/internal/chat"
)

type chatRequest struct {
	Message        string `json:"message" binding:"required"`
	ConversationID string `json:"conversation_id"`
}

type taskRequest struct {
	Task       string         `json:"task" binding:"required"`
	Parameters map[string]any `json:"parameters"`
}

func (s *Server) chatTurn(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.ConversationID == "" {
		req.ConversationID = "default"
	}

	conv, ok := s.conversations.Get(req.ConversationID)
	if !ok {
		conv = chat.NewConversation()
	}

	reply, err := s.chat.Respond(c.Request.Context(), conv, req.Message)
	if err != nil {
		detail(c, http.StatusInternalServerError, "Chat error: "+err.Error())
		return
	}
	s.conversations.Put(req.ConversationID, conv)

	c.JSON(http.StatusOK, gin.H{
		"response":        reply,
		"conversation_id": req.ConversationID,
		"workflow_state":  conv.CurrentStep,
	})
}

func (s *Server) getConversation(c *gin.Context) {
	id := c.Param("id")
	conv, ok := s.conversations.Get(id)
	if !ok {
		detail(c, http.StatusNotFound, "Conversation not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"conversation_id": id,
		"messages":        conv.Messages,
		"current_step":    conv.CurrentStep,
		"context":         conv.Context,
	})
}

func (s *Server) clearConversation(c *gin.Context) {
	id := c.Param("id")
	if !s.conversations.Delete(id) {
		detail(c, http.StatusNotFound, "Conversation not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Conversation " + id + " cleared"})
}

func (s *Server) runTaskWorkflow(c *gin.Context) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.chat.RunTask(c.Request.Context(), req.Task, req.Parameters)
	if err != nil {
		detail(c, http.StatusInternalServerError, "Workflow error: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) aiHealth(c *gin.Context) {
	if err := s.chat.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusOK, gin.H{
			"status":               "error",
			"llm_connected":        false,
			"error":                err.Error(),
			"active_conversations": s.conversations.Len(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":               "healthy",
		"llm_connected":        true,
		"active_conversations": s.conversations.Len(),
	})
}

type buildRequest struct {
	AppDescription    string         `json:"app_description" binding:"required"`
	AppName           string         `json:"app_name"`
	Features          []string       `json:"features"`
	DesignPreferences map[string]any `json:"design_preferences"`
}

func (s *Server) buildApp(c *gin.Context) {
	var req buildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}

	projectID := uuid.NewString()
	build, err := s.builder.Run(c.Request.Context(), builder.Request{
		AppDescription:    req.AppDescription,
		AppName:           req.AppName,
		Features:          req.Features,
		DesignPreferences: req.DesignPreferences,
		ProjectID:         projectID,
	})
	if err != nil {
		detail(c, http.StatusInternalServerError, "Build failed: "+err.Error())
		return
	}
	s.projects.Put(projectID, build)

	status := "success"
	if !build.Succeeded() {
		status = "failed"
	}
	c.JSON(http.StatusOK, gin.H{
		"project_id":      projectID,
		"status":          status,
		"app_name":        build.AppName,
		"project_path":    build.ProjectPath,
		"generated_files": filePaths(build),
		"build_logs":      build.BuildLogs,
		"errors":          build.Errors,
		"next_steps":      build.NextActions(),
	})
}

func (s *Server) getProject(c *gin.Context) {
	id := c.Param("id")
	build, ok := s.projects.Get(id)
	if !ok {
		detail(c, http.StatusNotFound, "Project not found")
		return
	}
	status := "success"
	if !build.Succeeded() {
		status = "failed"
	}
	logs := build.BuildLogs
	if len(logs) > 10 {
		logs = logs[len(logs)-10:]
	}
	c.JSON(http.StatusOK, gin.H{
		"project_id":      id,
		"app_name":        build.AppName,
		"status":          status,
		"current_step":    build.CurrentStep,
		"project_path":    build.ProjectPath,
		"generated_files": filePaths(build),
		"file_count":      len(build.GeneratedFiles),
		"build_logs":      logs,
		"errors":          build.Errors,
	})
}

func (s *Server) deleteProject(c *gin.Context) {
	id := c.Param("id")
	build, ok := s.projects.Get(id)
	if !ok {
		detail(c, http.StatusNotFound, "Project not found")
		return
	}
	if build.ProjectPath != "" {
		os.RemoveAll(build.ProjectPath)
	}
	s.projects.Delete(id)
	c.JSON(http.StatusOK, gin.H{"message": "Project " + id + " deleted"})
}

func (s *Server) mobileHealth(c *gin.Context) {
	node := s.checker.CheckNode()
	npm := s.checker.CheckNpm()

	status := "healthy"
	if !node.Installed || !npm.Installed {
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":          status,
		"node_installed":  node.Installed,
		"node_version":    node.Version,
		"npm_installed":   npm.Installed,
		"npm_version":     npm.Version,
		"active_projects": s.projects.Len(),
	})
}

func filePaths(b *builder.Build) []string {
	paths := make([]string, len(b.GeneratedFiles))
	for i, f := range b.GeneratedFiles {
		paths[i] = f.Path
	}
	return paths
}
