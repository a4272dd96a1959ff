package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/campusgig/campusgig-backend/internal/apperr"
	"github.com/campusgig/campusgig-backend/internal/middleware"
	"github.com/campusgig/campusgig-backend/internal/models"
	"github.com/campusgig/campusgig-backend/internal/utils"
)

type AuthHandler struct {
	DB        *gorm.DB
	JWTSecret string
	Expires   int
	Secure    bool
	Log       *zap.Logger
}

type RegisterReq struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      string `json:"role"` // employer / freelancer, admin is never self-assigned
	CollegeID string `json:"collegeId"`
}

type FieldErrors map[string][]string

func (e FieldErrors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

func validationFail(c *fiber.Ctx, errs FieldErrors) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"message": "Validation error",
		"errors":  errs,
	})
}

func (h *AuthHandler) setSession(c *fiber.Ctx, token string, maxAge int) {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.CookieName,
		Value:    token,
		Path:     "/",
		HTTPOnly: true,
		Secure:   h.Secure,
		SameSite: "Lax",
		MaxAge:   maxAge,
	})
}

func userView(u *models.User) fiber.Map {
	return fiber.Map{
		"id":        u.ID,
		"name":      u.Name,
		"email":     u.Email,
		"role":      u.Role,
		"collegeId": u.CollegeID,
		"rating":    u.Rating,
	}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterReq
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	password := strings.TrimSpace(req.Password)

	role := models.Role(strings.ToLower(strings.TrimSpace(req.Role)))
	if role == "" {
		role = models.RoleFreelancer
	}

	errs := FieldErrors{}
	if name == "" {
		errs.Add("name", "name is required")
	}
	if email == "" {
		errs.Add("email", "email is required")
	} else if !strings.Contains(email, "@") {
		errs.Add("email", "email is not valid")
	}
	if password == "" {
		errs.Add("password", "password is required")
	} else if len(password) < utils.MinPasswordLength {
		errs.Add("password", "password must be at least 6 characters")
	}
	if role != models.RoleEmployer && role != models.RoleFreelancer {
		errs.Add("role", "role must be employer or freelancer")
	}
	if len(errs) > 0 {
		return validationFail(c, errs)
	}

	var existing models.User
	if err := h.DB.Where("email = ?", email).First(&existing).Error; err == nil {
		errs.Add("email", "email is already registered")
		return validationFail(c, errs)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, h.Log, err)
	}

	pw, err := utils.HashPassword(password)
	if err != nil {
		return fail(c, h.Log, err)
	}

	u := models.User{
		Name:      name,
		Email:     email,
		Password:  pw,
		Role:      role,
		CollegeID: strings.TrimSpace(req.CollegeID),
		IsActive:  true,
	}
	if err := h.DB.Create(&u).Error; err != nil {
		return fail(c, h.Log, err)
	}

	token, err := utils.SignJWT(h.JWTSecret, u.ID.String(), string(u.Role), h.Expires)
	if err != nil {
		return fail(c, h.Log, err)
	}
	h.setSession(c, token, h.Expires*60)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Registered",
		"data": fiber.Map{
			"user":  userView(&u),
			"token": token,
		},
	})
}

type LoginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginReq
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	password := strings.TrimSpace(req.Password)

	errs := FieldErrors{}
	if email == "" {
		errs.Add("email", "email is required")
	}
	if password == "" {
		errs.Add("password", "password is required")
	}
	if len(errs) > 0 {
		return validationFail(c, errs)
	}

	var u models.User
	if err := h.DB.Where("email = ?", email).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fail(c, h.Log, apperr.Unauthorized("invalid email or password"))
		}
		return fail(c, h.Log, err)
	}
	if !u.IsActive {
		return fail(c, h.Log, apperr.Forbidden("account is disabled"))
	}
	if !utils.CheckPassword(u.Password, password) {
		return fail(c, h.Log, apperr.Unauthorized("invalid email or password"))
	}

	token, err := utils.SignJWT(h.JWTSecret, u.ID.String(), string(u.Role), h.Expires)
	if err != nil {
		return fail(c, h.Log, err)
	}
	h.setSession(c, token, h.Expires*60)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Logged in",
		"data": fiber.Map{
			"user":  userView(&u),
			"token": token,
		},
	})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	h.setSession(c, "", -1)
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Logged out",
	})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	var u models.User
	if err := h.DB.First(&u, "id = ?", uid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fail(c, h.Log, apperr.Unauthorized("user not found"))
		}
		return fail(c, h.Log, err)
	}
	return ok(c, userView(&u))
}
