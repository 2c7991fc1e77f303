package usecase

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"time"

	"app/internal/config"
	"app/internal/domain/model"
	repo "app/internal/repository"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

// accesstokenの有効期限
const accessTokenTTL = 15 * time.Minute

// refreshtokenの有効期限
const refreshTokenTTL = 30 * 24 * time.Hour

// オペレーターのログイン・トークン更新・ログアウト。
type AuthUsecase struct {
	cfg    config.Config
	users  repo.UserRepository
	rtRepo repo.RefreshTokenRepository
	idGen  IDGenerator
	clock  Clock
}

func NewAuthUsecase(
	cfg config.Config,
	users repo.UserRepository,
	rtRepo repo.RefreshTokenRepository,
	idGen IDGenerator,
	clock Clock,
) *AuthUsecase {
	return &AuthUsecase{
		cfg:    cfg,
		users:  users,
		rtRepo: rtRepo,
		idGen:  idGen,
		clock:  clock,
	}
}

type UserDTO struct {
	ID          int64  `json:"id"`
	ShopID      int64  `json:"shop_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	IsActive    bool   `json:"is_active"`
}

type JwtAccessTokenDTO struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenVersion int    `json:"token_version"`
}

type LoginInput struct {
	Email     string
	Password  string
	UserAgent string
}

type LoginOutput struct {
	User         UserDTO           `json:"user"`
	Token        JwtAccessTokenDTO `json:"token"`
	RefreshToken string            `json:"refresh_token"`
}

// ログイン。パスワード照合→JWT発行→リフレッシュトークン保存。
func (u *AuthUsecase) Login(ctx context.Context, in LoginInput) (LoginOutput, error) {
	if in.Email == "" || in.Password == "" {
		return LoginOutput{}, NewHTTPError(http.StatusBadRequest, CodeValidationFailed, "email and password required")
	}

	user, err := u.users.FindByEmail(ctx, in.Email)
	if err != nil {
		return LoginOutput{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}
	//存在しない場合も同じメッセージ（emailの在庫確認をさせない）
	if user == nil {
		return LoginOutput{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "invalid credentials")
	}
	if !user.IsActive {
		return LoginOutput{}, NewHTTPError(http.StatusForbidden, CodeForbidden, "user is inactive")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return LoginOutput{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "invalid credentials")
	}

	now := u.clock.Now()

	accessToken, expiresAt, err := u.issueAccessToken(user, now)
	if err != nil {
		return LoginOutput{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "token issue failed")
	}

	plainRefresh, err := u.createRefreshToken(ctx, user, in.UserAgent, now)
	if err != nil {
		return LoginOutput{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "token issue failed")
	}

	//最終ログイン時刻更新
	user.LastLoginAt = &now
	if err := u.users.Update(ctx, user); err != nil {
		return LoginOutput{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	return LoginOutput{
		User: toUserDTO(user),
		Token: JwtAccessTokenDTO{
			AccessToken:  accessToken,
			ExpiresIn:    int(expiresAt.Sub(now).Seconds()),
			TokenVersion: user.TokenVersion,
		},
		RefreshToken: plainRefresh,
	}, nil
}

type RefreshInput struct {
	RefreshToken string
	UserAgent    string
}

// リフレッシュ。トークンは使い捨て（ローテーション）。
func (u *AuthUsecase) Refresh(ctx context.Context, in RefreshInput) (LoginOutput, error) {
	if in.RefreshToken == "" {
		return LoginOutput{}, NewHTTPError(http.StatusBadRequest, CodeValidationFailed, "refresh token required")
	}

	token, err := u.rtRepo.FindByTokenHash(ctx, hashToken(in.RefreshToken))
	if err != nil {
		return LoginOutput{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}

	now := u.clock.Now()
	if token.UsedAt != nil || token.RevokedAt != nil || now.After(token.ExpiresAt) {
		return LoginOutput{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}

	//使用済みにしてから新しいトークンを出す
	if err := u.rtRepo.MarkUsed(ctx, token.ID); err != nil {
		return LoginOutput{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}

	user, err := u.users.FindByID(ctx, token.UserID)
	if err != nil {
		return LoginOutput{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}
	if user == nil || !user.IsActive {
		return LoginOutput{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}

	accessToken, expiresAt, err := u.issueAccessToken(user, now)
	if err != nil {
		return LoginOutput{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "token issue failed")
	}

	plainRefresh, err := u.createRefreshToken(ctx, user, in.UserAgent, now)
	if err != nil {
		return LoginOutput{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "token issue failed")
	}

	return LoginOutput{
		User: toUserDTO(user),
		Token: JwtAccessTokenDTO{
			AccessToken:  accessToken,
			ExpiresIn:    int(expiresAt.Sub(now).Seconds()),
			TokenVersion: user.TokenVersion,
		},
		RefreshToken: plainRefresh,
	}, nil
}

// ログアウト。渡されたリフレッシュトークンを無効にする。
func (u *AuthUsecase) Logout(ctx context.Context, userID int64, refreshToken string) error {
	if userID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	if refreshToken == "" {
		return NewHTTPError(http.StatusBadRequest, CodeValidationFailed, "refresh token required")
	}

	token, err := u.rtRepo.FindByTokenHash(ctx, hashToken(refreshToken))
	if err != nil {
		//見つからなくてもログアウトは成功扱い
		return nil
	}
	if token.UserID != userID {
		return NewHTTPError(http.StatusForbidden, CodeForbidden, "forbidden")
	}

	if err := u.rtRepo.Revoke(ctx, token.ID); err != nil {
		return nil
	}
	return nil
}

// 強制ログアウト（管理者用）。token_versionを上げて既存JWTを全部無効化し、
// リフレッシュトークンも消す。
func (u *AuthUsecase) ForceLogout(ctx context.Context, targetUserID int64) error {
	if targetUserID <= 0 {
		return NewHTTPError(http.StatusBadRequest, CodeValidationFailed, "invalid user id")
	}

	if err := u.users.IncrementTokenVersion(ctx, targetUserID); err != nil {
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, CodeUserNotFound, "user not found")
		}
		return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	if err := u.rtRepo.DeleteAllByUserID(ctx, targetUserID); err != nil {
		return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}
	return nil
}

// HS256でアクセストークンを発行。shop_idもclaimsに入れて
// ハンドラが店舗スコープを引けるようにする。
func (u *AuthUsecase) issueAccessToken(user *model.User, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(accessTokenTTL)

	claims := jwt.MapClaims{
		"sub":     user.ID,
		"shop_id": user.ShopID,
		"role":    string(user.Role),
		"tv":      user.TokenVersion,
		"iat":     now.Unix(),
		"exp":     expiresAt.Unix(),
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte(u.cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

func (u *AuthUsecase) createRefreshToken(ctx context.Context, user *model.User, userAgent string, now time.Time) (string, error) {
	plain, err := generateSecureToken(32)
	if err != nil {
		return "", err
	}

	token := &model.RefreshToken{
		ID:        u.idGen.NewID(),
		UserID:    user.ID,
		TokenHash: hashToken(plain),
		UserAgent: userAgent,
		ExpiresAt: now.Add(refreshTokenTTL),
	}

	if err := u.rtRepo.Create(ctx, token); err != nil {
		return "", err
	}
	return plain, nil
}

func hashToken(plain string) string {
	h := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(h[:])
}

func generateSecureToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func toUserDTO(user *model.User) UserDTO {
	return UserDTO{
		ID:          user.ID,
		ShopID:      user.ShopID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        string(user.Role),
		IsActive:    user.IsActive,
	}
}
