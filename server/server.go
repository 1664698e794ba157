// Package server exports a filesystem tree read-only over FUSE.
package server

import (
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/brettbedarf/termfs/filesystem"
	"github.com/brettbedarf/termfs/internal/util"
)

// Server mounts a [filesystem.FileSystem] and serves kernel requests
type Server struct {
	*filesystem.FileSystem
	server *fuse.Server
}

// New wraps fs for serving. The mount options and cache timeouts come from
// the filesystem's config.
func New(fs *filesystem.FileSystem) *Server {
	return &Server{FileSystem: fs}
}

// mountOptions converts the config's mount settings to go-fuse options
func (s *Server) mountOptions() *fuse.MountOptions {
	cfg := s.Config()
	return &fuse.MountOptions{
		Name:               cfg.Name,
		FsName:             cfg.FsName,
		Debug:              cfg.Debug || cfg.LogLvl == util.TraceLevel,
		Logger:             util.NewLogLogger("FuseServer", util.TraceLevel),
		DisableReadDirPlus: true,
		Options:            []string{"ro", "default_permissions"},
	}
}

// Serve mounts and serves the filesystem at the given mountPoint. It
// returns once the mount is ready.
func (s *Server) Serve(mountPoint string) error {
	logger := util.GetLogger("Server.Serve")

	raw := NewFuseRaw(s.FileSystem, mountPoint)
	srv, err := fuse.NewServer(raw, mountPoint, s.mountOptions())
	if err != nil {
		return err
	}
	s.server = srv

	go srv.Serve()
	if err := srv.WaitMount(); err != nil {
		return err
	}
	logger.Debug().Str("mountpoint", mountPoint).Int("nodes", s.Len()).Msg("Mounted")
	return nil
}

func (s *Server) ServeAsync(mountPoint string) <-chan error {
	done := make(chan error, 1)

	go func() {
		done <- s.Serve(mountPoint)
		close(done)
	}()

	return done
}

// Wait blocks until the filesystem is unmounted
func (s *Server) Wait() {
	if s.server != nil {
		s.server.Wait()
	}
}

// Unmount cleanly unmounts the filesystem.
func (s *Server) Unmount() error {
	if s.server == nil {
		return nil
	}
	return s.server.Unmount()
}
