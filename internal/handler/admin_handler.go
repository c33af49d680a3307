package handler

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	sessionUserKey = "user_id"
	userContextKey = "__user_id"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login 校验账号并写入会话
func (a *API) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req, "Requisição inválida.") {
		return
	}

	user, err := a.auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		a.respondFailure(c, err)
		return
	}

	session := sessions.Default(c)
	session.Set(sessionUserKey, user.ID)
	if err := session.Save(); err != nil {
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, "Falha ao salvar a sessão.")
		return
	}
	a.logger.Info("signed in", "user", user.ID)
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Logout 清除会话并丢弃后台工作区
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	if id, ok := session.Get(sessionUserKey).(string); ok {
		a.workspaces.Forget(id)
	}
	session.Clear()
	if err := session.Save(); err != nil {
		_ = c.Error(err)
	}
	c.Status(http.StatusNoContent)
}

type resetRequest struct {
	Email string `json:"email"`
}

// RequestPasswordReset always answers 202 for a syntactically valid request
// so the endpoint cannot be used to enumerate accounts.
func (a *API) RequestPasswordReset(c *gin.Context) {
	var req resetRequest
	if !bindJSON(c, &req, "Requisição inválida.") {
		return
	}
	if err := a.auth.SendPasswordReset(c.Request.Context(), req.Email); err != nil {
		a.respondFailure(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "Se o email estiver cadastrado, enviaremos um link de redefinição."})
}

type resetConfirmRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (a *API) ConfirmPasswordReset(c *gin.Context) {
	var req resetConfirmRequest
	if !bindJSON(c, &req, "Requisição inválida.") {
		return
	}
	if err := a.auth.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		a.respondFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Senha atualizada."})
}

// AuthRequired 是一个简单的认证中间件
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID, ok := session.Get(sessionUserKey).(string)
		if !ok || userID == "" {
			respondError(c, http.StatusUnauthorized, "Faça login para continuar.")
			c.Abort()
			return
		}
		c.Set(userContextKey, userID)
		c.Next()
	}
}

func currentUserID(c *gin.Context) string {
	return c.GetString(userContextKey)
}
