// Package identity is the injected sign-in provider: an in-memory account
// book with a single current user, HS256 session tokens and fiber middleware.
package identity

import (
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const accessTokenTTL = 24 * time.Hour

var hashCost = bcrypt.DefaultCost

type account struct {
	user         User
	passwordHash []byte
}

type Claims struct {
	UserID    string `json:"user_id"`
	Anonymous bool   `json:"anonymous,omitempty"`
	jwt.RegisteredClaims
}

type listener struct {
	id int
	fn func(*User)
}

type Provider struct {
	secret []byte

	mu           sync.Mutex
	notifyMu     sync.Mutex
	accounts     map[string]account
	current      *User
	listeners    []listener
	nextListener int
}

func NewProvider(secret string) *Provider {
	return &Provider{
		secret:   []byte(secret),
		accounts: map[string]account{},
	}
}

// SignUp registers a new account and makes it the current user.
func (p *Provider) SignUp(email, password string) (User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return User{}, ErrMissingCredentials
	}
	return p.register(email, password, false)
}

// SignIn verifies a known account. An unknown email is registered on the
// spot, so a first sign-in always succeeds.
func (p *Provider) SignIn(email, password string) (User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return User{}, ErrMissingCredentials
	}

	p.mu.Lock()
	acct, ok := p.accounts[email]
	p.mu.Unlock()
	if !ok {
		return p.register(email, password, true)
	}

	if err := bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	p.lock()
	user := acct.user
	p.setCurrentLocked(&user)
	return user, nil
}

// register creates the account for email. When another caller registered it
// first, signIn decides whether that account is signed into or refused.
func (p *Provider) register(email, password string, signIn bool) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	if err != nil {
		return User{}, err
	}

	p.lock()
	if acct, ok := p.accounts[email]; ok {
		if !signIn {
			p.unlock()
			return User{}, ErrEmailTaken
		}
		if err := bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(password)); err != nil {
			p.unlock()
			return User{}, ErrInvalidCredentials
		}
		user := acct.user
		p.setCurrentLocked(&user)
		return user, nil
	}
	user := User{ID: newUserID(), Email: email}
	p.accounts[email] = account{user: user, passwordHash: hash}
	p.setCurrentLocked(&user)
	return user, nil
}

// SignInAsGuest starts an anonymous session with a fresh user id.
func (p *Provider) SignInAsGuest() User {
	user := User{ID: newUserID(), IsAnonymous: true}
	p.lock()
	p.setCurrentLocked(&user)
	return user
}

func (p *Provider) SignOut() {
	p.lock()
	p.setCurrentLocked(nil)
}

// CurrentUser returns a copy of the signed-in user, or nil.
func (p *Provider) CurrentUser() *User {
	p.mu.Lock()
	defer p.mu.Unlock()
	return copyUser(p.current)
}

// Subscribe calls fn with the current user right away and again on every
// change. The returned func stops further calls.
func (p *Provider) Subscribe(fn func(*User)) (unsubscribe func()) {
	p.lock()
	p.nextListener++
	id := p.nextListener
	p.listeners = append(p.listeners, listener{id: id, fn: fn})
	current := copyUser(p.current)
	p.mu.Unlock()

	fn(current)
	p.notifyMu.Unlock()

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, l := range p.listeners {
			if l.id == id {
				p.listeners = append(p.listeners[:i:i], p.listeners[i+1:]...)
				return
			}
		}
	}
}

// Token issues a signed session token for user.
func (p *Provider) Token(user User) (SessionResponse, error) {
	claims := Claims{
		UserID:    user.ID,
		Anonymous: user.IsAnonymous,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(accessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return SessionResponse{}, err
	}
	return SessionResponse{
		User:        user,
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(accessTokenTTL.Seconds()),
	}, nil
}

// ValidateToken returns the user id carried by a session token.
func (p *Provider) ValidateToken(token string) (string, error) {
	claims, err := parseToken(p.secret, token)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

// lock takes notifyMu before mu. Listeners run holding only notifyMu, so
// they may call back into CurrentUser.
func (p *Provider) lock() {
	p.notifyMu.Lock()
	p.mu.Lock()
}

func (p *Provider) unlock() {
	p.mu.Unlock()
	p.notifyMu.Unlock()
}

// setCurrentLocked must be called after p.lock; it releases both locks and
// notifies listeners in change order.
func (p *Provider) setCurrentLocked(user *User) {
	p.current = copyUser(user)
	listeners := append([]listener(nil), p.listeners...)
	snapshot := copyUser(user)

	p.mu.Unlock()
	defer p.notifyMu.Unlock()
	for _, l := range listeners {
		l.fn(copyUser(snapshot))
	}
}

func parseToken(secret []byte, token string) (*Claims, error) {
	parsed, err := parseClaimsFn(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

var parseClaimsFn = jwt.ParseWithClaims

func copyUser(u *User) *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func newUserID() string {
	return "uid_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}
