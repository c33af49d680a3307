package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clinicblog/internal/service"
)

// GetProfile 返回当前登录用户
func (a *API) GetProfile(c *gin.Context) {
	user, err := a.auth.User(c.Request.Context(), currentUserID(c))
	if err != nil {
		a.respondFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

type profileRequest struct {
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
}

func (a *API) UpdateProfile(c *gin.Context) {
	var req profileRequest
	if !bindJSON(c, &req, "Requisição inválida.") {
		return
	}
	user, err := a.auth.UpdateProfile(c.Request.Context(), currentUserID(c), service.ProfileInput{
		DisplayName: req.DisplayName,
		PhotoURL:    req.PhotoURL,
	})
	if err != nil {
		a.respondFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UploadAvatar 处理头像上传，字段名为 photo
func (a *API) UploadAvatar(c *gin.Context) {
	file, err := formFile(c, "photo")
	if err != nil {
		a.respondFailure(c, err)
		return
	}
	if file == nil {
		respondError(c, http.StatusBadRequest, "Selecione uma imagem.")
		return
	}
	user, err := a.auth.UploadAvatar(c.Request.Context(), currentUserID(c), *file)
	if err != nil {
		a.respondFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}
