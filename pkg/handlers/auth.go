package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"worksphere-backend/pkg/config"
	"worksphere-backend/pkg/database"
	"worksphere-backend/pkg/models"
	"worksphere-backend/pkg/utils"

	"golang.org/x/crypto/bcrypt"
)

// AuthHandler owns registration, login, and token refresh
type AuthHandler struct {
	config *config.Config
	db     database.DatabaseInterface
}

func NewAuthHandler(cfg *config.Config, db database.DatabaseInterface) *AuthHandler {
	return &AuthHandler{config: cfg, db: db}
}

// ensureDefaultOrganization makes sure a fresh user lands in an
// organization they own. Returns the organization ID.
func (h *AuthHandler) ensureDefaultOrganization(user *models.User) (string, error) {
	if user == nil || user.ID == "" {
		return "", fmt.Errorf("invalid user")
	}
	orgs, err := h.db.ListUserOrganizations(user.ID)
	if err == nil && len(orgs) > 0 {
		return orgs[0].ID, nil
	}
	displayName := user.Name
	if strings.TrimSpace(displayName) == "" {
		parts := strings.Split(user.Email, "@")
		if len(parts) > 0 {
			displayName = parts[0]
		}
	}
	org := &models.Organization{
		Name:        fmt.Sprintf("%s's Workspace", displayName),
		Description: "Default organization",
		OwnerID:     user.ID,
	}
	if err := h.db.CreateOrganization(org); err != nil {
		return "", err
	}
	// Seed a first project so the board is not empty (best-effort)
	_ = h.db.CreateProject(&models.Project{OrganizationID: org.ID, Name: "General", Description: "Default project", CreatedBy: user.ID})
	return org.ID, nil
}

// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.UserRegisterRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		utils.WriteValidationErrorResponse(w, "A valid email is required", "")
		return
	}
	if len(req.Password) < 8 {
		utils.WriteValidationErrorResponse(w, "Password must be at least 8 characters", "")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to hash password")
		return
	}

	user := &models.User{
		Email:    req.Email,
		Password: string(hash),
		Name:     strings.TrimSpace(req.Name),
	}
	if err := h.db.CreateUser(user); err != nil {
		if errors.Is(err, models.ErrDuplicateEmail) {
			utils.WriteConflictResponse(w, "Email already registered")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to create user: "+err.Error())
		return
	}

	orgID, err := h.ensureDefaultOrganization(user)
	if err != nil {
		fmt.Printf("[warn] failed to create default organization for %s: %v\n", user.Email, err)
	}

	jwtService := utils.NewJWTService(h.config.JWTSecret)
	accessToken, refreshToken, expiresIn, err := jwtService.GenerateTokenPair(user.ID, user.Email)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to generate tokens")
		return
	}

	fmt.Printf("✅ Registered user %s\n", user.Email)
	utils.WriteCreatedResponse(w, models.UserLoginResponse{
		User:         *user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
		OrgID:        orgID,
	})
}

// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.UserLoginRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		utils.WriteValidationErrorResponse(w, "Email and password are required", "")
		return
	}

	user, err := h.db.GetUserByEmail(req.Email)
	if err != nil {
		// Same response for unknown email and bad password
		utils.WriteUnauthorizedResponse(w, "Invalid email or password")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		utils.WriteUnauthorizedResponse(w, "Invalid email or password")
		return
	}

	orgID := ""
	if orgs, err := h.db.ListUserOrganizations(user.ID); err == nil && len(orgs) > 0 {
		orgID = orgs[0].ID
	}

	jwtService := utils.NewJWTService(h.config.JWTSecret)
	accessToken, refreshToken, expiresIn, err := jwtService.GenerateTokenPair(user.ID, user.Email)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to generate tokens")
		return
	}

	user.Password = ""
	utils.WriteSuccessResponse(w, models.UserLoginResponse{
		User:         *user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
		OrgID:        orgID,
	})
}

// POST /api/auth/refresh
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		utils.WriteBadRequestResponse(w, "refresh_token is required")
		return
	}

	jwtService := utils.NewJWTService(h.config.JWTSecret)
	accessToken, expiresIn, err := jwtService.RefreshAccessToken(req.RefreshToken)
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Invalid or expired refresh token: "+err.Error())
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"access_token": accessToken,
		"expires_in":   expiresIn,
	})
}

// POST /api/auth/logout
// Tokens are stateless, so logout is a client-side discard.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccessResponse(w, map[string]interface{}{"logged_out": true})
}

// GET /api/health
func (h *AuthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	dbStatus := "healthy"
	if err := h.db.HealthCheck(); err != nil {
		dbStatus = "unhealthy: " + err.Error()
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"service":     "worksphere-backend",
		"version":     "1.0.0",
		"environment": h.config.Environment,
		"database":    h.getDatabaseType(),
		"db_status":   dbStatus,
		"timestamp":   time.Now().Unix(),
		"status":      "healthy",
	})
}

func (h *AuthHandler) getDatabaseType() string {
	if h.config.PostgresDSN != "" {
		return "postgresql"
	}
	return "memory"
}
