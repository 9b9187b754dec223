package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"net/url"

	"github.com/craftfolio/backend/api/domain"
	"github.com/craftfolio/backend/api/util"
	"github.com/craftfolio/backend/api/util/middleware"
	"github.com/google/go-github/github"
	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"github.com/jackc/pgx/v4"
	"golang.org/x/oauth2"
)

const (
	SESSION_STORE_KEY = "craftfolio-oauth2"

	githubAuthorizeUrl = "https://github.com/login/oauth/authorize"
	githubTokenUrl     = "https://github.com/login/oauth/access_token"
)

// GithubOAuth2Handler resolves the owner identity: GitHub login exchanges
// into an opaque bearer token held in the auth cache, and the middleware
// turns that token back into an owner id on every request.
type GithubOAuth2Handler struct {
	store     *sessions.CookieStore
	oauthCfg  *oauth2.Config
	router    *mux.Router
	userRepo  domain.UserRepository
	authCache domain.AuthCache
	admin     string
	apiPath   string
	isPrivate bool
}

func (o *GithubOAuth2Handler) Middleware(h http.Handler) http.Handler {
	return middleware.OAuth2Middleware(o.authCache, o.admin, h)
}

// fail reports an auth error either as JSON or, when the login flow carries
// a redirect path, as a redirect with the error in the query string.
func fail(w http.ResponseWriter, r *http.Request, redirectPath string, status int, msg string) {
	log.Println(msg)
	if redirectPath == "" {
		util.WriteError(w, status, msg)
		return
	}
	http.Redirect(w, r, fmt.Sprintf("%s?error=%s", redirectPath, url.QueryEscape(msg)), http.StatusFound)
}

func (o *GithubOAuth2Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	redirectPath := r.URL.Query().Get("redirect_path")

	b := make([]byte, 16)
	rand.Read(b)
	state := base64.URLEncoding.EncodeToString(b)

	session, _ := o.store.Get(r, SESSION_STORE_KEY)
	session.Values["state"] = state
	session.Values["redirect_path"] = ""
	if redirectPath != "" {
		u, err := url.Parse(redirectPath)
		if err != nil {
			util.WriteError(w, http.StatusBadRequest, fmt.Sprintf("bad redirect_path: %s", redirectPath))
			return
		}
		if u.Scheme != "" || u.Host != "" {
			util.WriteError(w, http.StatusBadRequest, fmt.Sprintf("redirect_path must be relative: %s", redirectPath))
			return
		}
		session.Values["redirect_path"] = redirectPath
	}
	session.Save(r, w)

	http.Redirect(w, r, o.oauthCfg.AuthCodeURL(state), http.StatusFound)
}

func (o *GithubOAuth2Handler) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	session, err := o.store.Get(r, SESSION_STORE_KEY)
	if err != nil {
		util.WriteError(w, http.StatusBadRequest, "Aborted")
		return
	}
	redirectPath, _ := session.Values["redirect_path"].(string)

	if r.URL.Query().Get("state") != session.Values["state"] {
		fail(w, r, redirectPath, http.StatusBadRequest, "No state match; possible csrf OR cookies not enabled")
		return
	}

	token, err := o.oauthCfg.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil || !token.Valid() {
		if err != nil {
			log.Println(err)
		}
		fail(w, r, redirectPath, http.StatusBadRequest, "There was an issue getting your token")
		return
	}

	client := github.NewClient(o.oauthCfg.Client(r.Context(), token))
	ctx, cancel := util.GetContextWithTimeout(r.Context())
	defer cancel()
	githubUser, _, err := client.Users.Get(ctx, "")
	if err != nil || githubUser == nil || githubUser.Email == nil {
		if err != nil {
			log.Println(err)
		}
		fail(w, r, redirectPath, http.StatusBadRequest,
			"Error getting email from github. Please make sure you have set your email as Public email in Github settings.")
		return
	}
	email := *githubUser.Email

	ctx, cancel = util.GetContextWithTimeout(context.Background())
	defer cancel()
	user, err := o.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if err != pgx.ErrNoRows {
			log.Println(err)
			fail(w, r, redirectPath, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
			return
		}
		if email != o.admin && o.isPrivate {
			fail(w, r, redirectPath, http.StatusForbidden, "This API is private. Please contact administrator.")
			return
		}
		ctx, cancel = util.GetContextWithTimeout(context.Background())
		defer cancel()
		user = &domain.User{Email: email, ProjectQuota: 0}
		if err := o.userRepo.Insert(ctx, user); err != nil {
			log.Println(err)
			fail(w, r, redirectPath, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
			return
		}
	}

	session.Values["email"] = user.Email
	session.Values["id"] = user.ID
	if err := session.Save(r, w); err != nil {
		log.Println(err)
		fail(w, r, redirectPath, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	credentialsUrl, _ := o.router.Get("credentials").URL()
	http.Redirect(w, r, fmt.Sprintf("%s%s", o.apiPath, credentialsUrl.Path), http.StatusFound)
}

func (o *GithubOAuth2Handler) CredentialsHandler(w http.ResponseWriter, r *http.Request) {
	session, err := o.store.Get(r, SESSION_STORE_KEY)
	if err != nil {
		util.WriteError(w, http.StatusBadRequest, "Aborted")
		return
	}
	redirectPath, _ := session.Values["redirect_path"].(string)

	email, ok := session.Values["email"].(string)
	if !ok {
		fail(w, r, redirectPath, http.StatusBadRequest, "no email")
		return
	}
	id, ok := session.Values["id"].(int)
	if !ok {
		fail(w, r, redirectPath, http.StatusBadRequest, "no id")
		return
	}

	ctx, cancel := util.GetContextWithTimeout(context.Background())
	defer cancel()
	t, err := o.authCache.GenerateAndSaveToken(ctx, email, id)
	if err != nil {
		log.Println(err)
		fail(w, r, redirectPath, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		log.Println(err)
		fail(w, r, redirectPath, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	authToken := &domain.AuthToken{
		AccessToken: t,
		TokenType:   "bearer",
		ExpiresIn:   o.authCache.GetTokenExpiry(),
	}

	if redirectPath == "" {
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		util.WriteJson(w, authToken)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:   "access_token",
		Value:  authToken.AccessToken,
		MaxAge: int(authToken.ExpiresIn.Seconds()),
		Path:   "/",
	})
	http.Redirect(w, r, redirectPath, http.StatusFound)
}

func (o *GithubOAuth2Handler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	authUser, _ := middleware.AuthUser(r)
	ctx, cancel := util.GetContextWithTimeout(context.Background())
	defer cancel()
	if err := o.authCache.DeleteToken(ctx, authUser.Token); err != nil {
		log.Println(err)
		util.WriteInternalServerError(w)
		return
	}
	util.WriteOK(w)
}

func NewGithubOAuth2Handler(
	r *mux.Router,
	userRepo domain.UserRepository,
	authCache domain.AuthCache,
	clientSecret string,
	clientID string,
	sessionKey string,
	admin string,
	isPrivate bool,
	apiPath string,
	prefix string,
) *GithubOAuth2Handler {
	o := &GithubOAuth2Handler{
		store: sessions.NewCookieStore([]byte(sessionKey)),
		oauthCfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  githubAuthorizeUrl,
				TokenURL: githubTokenUrl,
			},
			Scopes: []string{},
		},
		userRepo:  userRepo,
		authCache: authCache,
		admin:     admin,
		apiPath:   apiPath,
		isPrivate: isPrivate,
	}

	o.router = r.PathPrefix(prefix).Subrouter()
	o.router.HandleFunc("/login", o.LoginHandler).Methods("GET")
	o.router.HandleFunc("/callback", o.CallbackHandler).Methods("GET")
	o.router.HandleFunc("/credentials", o.CredentialsHandler).Methods("GET").Name("credentials")
	o.router.HandleFunc("/logout", o.Middleware(http.HandlerFunc(o.LogoutHandler)).ServeHTTP).Methods("GET")

	return o
}
