package server

import (
	"os"
	"os/user"
	"strconv"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/brettbedarf/termfs/internal/util"
)

// ownerResolver maps node owner and group names to host ids. Names unknown
// to the host map to the uid/gid of the serving process.
type ownerResolver struct {
	uids     *xsync.Map[string, uint32]
	gids     *xsync.Map[string, uint32]
	fallback fuse.Owner
}

func newOwnerResolver() *ownerResolver {
	return &ownerResolver{
		uids:     xsync.NewMap[string, uint32](),
		gids:     xsync.NewMap[string, uint32](),
		fallback: fuse.Owner{Uid: uint32(os.Getuid()), Gid: uint32(os.Getgid())},
	}
}

func (r *ownerResolver) Owner(owner, group string) fuse.Owner {
	uid, _ := r.uids.LoadOrCompute(owner, func() (uint32, bool) {
		return r.lookup(owner, r.fallback.Uid, func(name string) (string, error) {
			u, err := user.Lookup(name)
			if err != nil {
				return "", err
			}
			return u.Uid, nil
		}), false
	})
	gid, _ := r.gids.LoadOrCompute(group, func() (uint32, bool) {
		return r.lookup(group, r.fallback.Gid, func(name string) (string, error) {
			g, err := user.LookupGroup(name)
			if err != nil {
				return "", err
			}
			return g.Gid, nil
		}), false
	})
	return fuse.Owner{Uid: uid, Gid: gid}
}

func (r *ownerResolver) lookup(name string, fallback uint32, find func(string) (string, error)) uint32 {
	logger := util.GetLogger("Server.Owner")
	id, err := find(name)
	if err != nil {
		logger.Debug().Err(err).Str("name", name).Uint32("fallback", fallback).Msg("Unknown host name; using fallback id")
		return fallback
	}
	n, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return fallback
	}
	return uint32(n)
}
