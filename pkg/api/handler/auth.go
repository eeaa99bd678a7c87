package handler

import (
	"database/sql"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aliciakaith/flowgrid/pkg/apperr"
	"github.com/aliciakaith/flowgrid/pkg/api/dto"
	"github.com/aliciakaith/flowgrid/pkg/api/middleware"
	"github.com/aliciakaith/flowgrid/pkg/auth"
	"github.com/aliciakaith/flowgrid/pkg/mailer"
	"github.com/aliciakaith/flowgrid/pkg/storage"
	"github.com/aliciakaith/flowgrid/pkg/sweep"
)

// AuthHandler 认证API处理器
type AuthHandler struct {
	store          *storage.Store
	mailer         *mailer.Mailer
	google         *auth.GoogleProvider
	secret         []byte
	frontendOrigin string
	secureCookies  bool
}

// NewAuthHandler 创建AuthHandler；google可为nil（未配置OIDC）
func NewAuthHandler(store *storage.Store, m *mailer.Mailer, google *auth.GoogleProvider, secret []byte, frontendOrigin string, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		store:          store,
		mailer:         m,
		google:         google,
		secret:         secret,
		frontendOrigin: frontendOrigin,
		secureCookies:  secureCookies,
	}
}

// Signup 注册：创建PendingUser并邮寄6位验证码
// POST /auth/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, fmt.Sprintf("请求参数错误: %v", err)))
		return
	}

	if _, err := h.store.Users.GetByEmail(ctx, req.Email); err == nil {
		c.JSON(http.StatusConflict, dto.NewErrorResponse(409, "邮箱已被注册"))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	code, err := auth.GenerateVerificationCode()
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.store.Users.UpsertPending(ctx, req.Email, hash, code); err != nil {
		respondError(c, err)
		return
	}

	if err := h.mailer.Send(ctx, req.Email, "验证码", fmt.Sprintf("您的注册验证码是 %s，24小时内有效。", code)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewSuccessResponse(map[string]string{"email": req.Email}))
}

// Verify 校验验证码：先创建组织，再在同一事务中创建用户并清除PendingUser（组织创建不在该事务内）
// POST /auth/verify
func (h *AuthHandler) Verify(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, fmt.Sprintf("请求参数错误: %v", err)))
		return
	}

	pending, err := h.store.Users.GetPending(ctx, req.Email)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, "验证码无效"))
		return
	}

	// 验证码24小时过期（过期行由周期清理兜底删除）
	if pending.VerificationCode != req.Code || timeSince(pending.LastSentAt) > sweep.PendingUserTTL {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, "验证码无效"))
		return
	}

	// 组织以邮箱命名创建，后续可改名
	org, err := h.store.Orgs.Create(ctx, pending.Email)
	if err != nil {
		respondError(c, err)
		return
	}

	user := &storage.User{
		OrgID:        org.ID,
		Email:        pending.Email,
		PasswordHash: sql.NullString{String: pending.PasswordHash, Valid: true},
	}
	if err := h.store.Users.PromotePending(ctx, pending.Email, user); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(map[string]string{"user_id": user.ID, "org_id": org.ID}))
}

// Login 登录并签发会话cookie
// POST /auth/login
// “无此用户”与“口令错误”刻意返回相同响应
func (h *AuthHandler) Login(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, fmt.Sprintf("请求参数错误: %v", err)))
		return
	}

	user, err := h.store.Users.GetByEmail(ctx, req.Email)
	if err != nil || !user.PasswordHash.Valid || !auth.CheckPassword(user.PasswordHash.String, req.Password) {
		c.JSON(http.StatusUnauthorized, dto.NewErrorResponse(401, "邮箱或口令错误"))
		return
	}

	kind := auth.SessionDefault
	if req.Remember {
		kind = auth.SessionRemember
	}

	if err := h.issueSessionCookies(c, user, kind); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(profileView(user)))
}

// Logout 登出：清除两个路径范围上的全部会话cookie
// POST /auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	for _, path := range []string{"/", "/api"} {
		c.SetCookie(middleware.SessionCookie, "", -1, path, "", h.secureCookies, true)
		c.SetCookie(middleware.SessionCookieFallback, "", -1, path, "", false, true)
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(map[string]string{"message": "已登出"}))
}

// Me 返回当前身份的资料
// GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	p := middleware.PrincipalFrom(c)
	user, err := h.store.Users.GetByID(c.Request.Context(), p.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(profileView(user)))
}

// ForgotPassword 忘记口令
// POST /auth/forgot-password
// 无论邮箱是否存在一律200，不泄露注册状态
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, fmt.Sprintf("请求参数错误: %v", err)))
		return
	}

	if user, err := h.store.Users.GetByEmail(ctx, req.Email); err == nil {
		code, err := auth.GenerateVerificationCode()
		if err == nil {
			_ = h.mailer.Send(ctx, user.Email, "重置口令", fmt.Sprintf("您的重置验证码是 %s。", code))
		}
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(map[string]string{"message": "如果邮箱存在，重置邮件已发送"}))
}

// GoogleLogin 跳转Google授权页
// GET /auth/google
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	if h.google == nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, "Google登录未配置"))
		return
	}

	state := uuid.NewString()
	c.SetCookie("fg_oauth_state", state, 600, "/", "", h.secureCookies, true)
	c.Redirect(http.StatusFound, h.google.AuthCodeURL(state))
}

// GoogleCallback OIDC回调：首次成功登录时upsert用户
// GET /auth/google/callback
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	ctx := c.Request.Context()

	if h.google == nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, "Google登录未配置"))
		return
	}

	state, err := c.Cookie("fg_oauth_state")
	if err != nil || state == "" || state != c.Query("state") {
		c.JSON(http.StatusUnauthorized, dto.NewErrorResponse(401, "state校验失败"))
		return
	}
	c.SetCookie("fg_oauth_state", "", -1, "/", "", h.secureCookies, true)

	claims, err := h.google.Exchange(ctx, c.Query("code"))
	if err != nil {
		respondError(c, err)
		return
	}

	user, err := h.store.Users.GetByEmail(ctx, claims.Email)
	if err != nil {
		if apperr.KindOf(err) != apperr.NotFound {
			respondError(c, err)
			return
		}
		// 首次登录：创建组织与用户
		org, err := h.store.Orgs.Create(ctx, claims.Email)
		if err != nil {
			respondError(c, err)
			return
		}
		user = &storage.User{
			OrgID: org.ID,
			Email: claims.Email,
		}
		if claims.GivenName != "" {
			user.FirstName = sql.NullString{String: claims.GivenName, Valid: true}
		}
		if claims.FamilyName != "" {
			user.LastName = sql.NullString{String: claims.FamilyName, Valid: true}
		}
		if claims.Picture != "" {
			user.ProfilePicture = sql.NullString{String: claims.Picture, Valid: true}
		}
		if err := h.store.Users.Create(ctx, user); err != nil {
			respondError(c, err)
			return
		}
	}

	if err := h.issueSessionCookies(c, user, auth.SessionOAuth); err != nil {
		respondError(c, err)
		return
	}

	if h.frontendOrigin != "" {
		c.Redirect(http.StatusFound, h.frontendOrigin)
		return
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(profileView(user)))
}

// issueSessionCookies 签发主cookie与开发环境备用cookie
func (h *AuthHandler) issueSessionCookies(c *gin.Context, user *storage.User, kind auth.SessionKind) error {
	token, err := auth.IssueSession(h.secret, auth.Principal{
		UserID: user.ID,
		Email:  user.Email,
		OrgID:  user.OrgID,
	}, kind)
	if err != nil {
		return err
	}

	maxAge := int(kind.TTL().Seconds())
	c.SetCookie(middleware.SessionCookie, token, maxAge, "/", "", h.secureCookies, true)
	if !h.secureCookies {
		// 备用cookie只在开发环境存在，桥接丢弃非Secure cookie的浏览器
		c.SetCookie(middleware.SessionCookieFallback, token, maxAge, "/", "", false, true)
	}
	return nil
}

// profileView 用户资料视图
func profileView(u *storage.User) dto.UserProfile {
	p := dto.UserProfile{
		ID:            u.ID,
		OrgID:         u.OrgID,
		Email:         u.Email,
		RateLimit:     u.RateLimit,
		DeactivatedAt: u.DeactivatedAt,
		CreatedAt:     u.CreatedAt,
	}
	if u.FirstName.Valid {
		p.FirstName = u.FirstName.String
	}
	if u.LastName.Valid {
		p.LastName = u.LastName.String
	}
	if u.ProfilePicture.Valid {
		p.ProfilePicture = u.ProfilePicture.String
	}
	return p
}
