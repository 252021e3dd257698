package grpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DRSN-tech/marketplace/pkg/e"
	"github.com/DRSN-tech/marketplace/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func GRPCErrorResponse(err error) error {
	switch {
	case errors.Is(err, e.ErrInvalidPrice),
		errors.Is(err, e.ErrPricePrecision),
		errors.Is(err, e.ErrInvalidPriceRange):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, e.ErrInternalServerError.Error())
	}
}

func loggingInterceptor(log logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err)
		switch code {
		case codes.OK:
			log.Debugf("gRPC %s code=%s duration=%s", info.FullMethod, code, time.Since(start))
		case codes.Internal, codes.Unknown:
			log.Errorf(err, "gRPC %s code=%s duration=%s", info.FullMethod, code, time.Since(start))
		default:
			log.Warnf("gRPC %s code=%s duration=%s", info.FullMethod, code, time.Since(start))
		}

		return resp, err
	}
}

func recoveryInterceptor(log logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf(fmt.Errorf("%v", r), "panic in %s", info.FullMethod)
				err = status.Error(codes.Internal, e.ErrInternalServerError.Error())
			}
		}()

		return handler(ctx, req)
	}
}
