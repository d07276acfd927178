package health

import (
	"context"
	"fmt"
	"net"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"pathfinder/topology"
)

// ServiceName is reported NOT_SERVING until the first topology is accepted.
const ServiceName = "pathfinder"

type Server struct {
	listenAddr string
	health     *grpchealth.Server
	grpcServer *grpc.Server
}

func NewServer(listenAddr string) *Server {
	hs := grpchealth.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)

	return &Server{
		listenAddr: listenAddr,
		health:     hs,
		grpcServer: grpcServer,
	}
}

// TopologyLoaded marks the service as serving. It is registered as a
// synchronizer topology listener.
func (s *Server) TopologyLoaded(topo *topology.Topology) {
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
}

func (s *Server) HealthServer() healthpb.HealthServer {
	return s.health
}

// Serve accepts health checks on lis until ctx is done.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	go func() {
		<-ctx.Done()
		log.Infof("Health gRPC server is shutting down...")
		s.Stop()
	}()

	log.Infof("Health gRPC server Start, ListenAddr=%s", lis.Addr())
	return s.grpcServer.Serve(lis)
}

func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("health server listen on %s: %w", s.listenAddr, err)
	}
	return s.Serve(ctx, lis)
}

func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}
