package app

import (
	"github.com/campuskit/idp/internal/cache"
	"github.com/campuskit/idp/internal/clients"
	"github.com/campuskit/idp/internal/codes"
	"github.com/campuskit/idp/internal/refresh"
	"github.com/campuskit/idp/internal/store/core"
	"github.com/campuskit/idp/internal/token"
)

// Container agrupa las dependencias que los handlers componen.
type Container struct {
	Store    core.Repository
	Cache    cache.Client
	Issuer   *token.Issuer
	Registry *clients.Registry
	Codes    *codes.Store
	Refresh  *refresh.Engine
}
