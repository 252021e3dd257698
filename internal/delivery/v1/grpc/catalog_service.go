package grpc

import (
	"context"

	"github.com/DRSN-tech/marketplace/internal/domain"
	"github.com/DRSN-tech/marketplace/internal/usecase"
	"github.com/DRSN-tech/marketplace/pkg/e"
	"github.com/DRSN-tech/marketplace/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	CatalogServiceName        = "marketplace.v1.CatalogService"
	listProductsFullMethod    = "/" + CatalogServiceName + "/ListProducts"
	catalogServiceProtoSource = "marketplace/v1/catalog.proto"
)

// CatalogServiceServer — выдача каталога для внутренних сервисов.
// Запрос и ответ передаются как google.protobuf.Struct:
//
//	запрос: {"category": "too", "min_price": "0", "max_price": "20.00"}, все поля необязательны
//	ответ:  {"products": [{"id": 1, "name": "...", "category": "...", "price": "10.00", "image_url": "..."}]}
type CatalogServiceServer interface {
	ListProducts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

func RegisterCatalogServiceServer(s grpc.ServiceRegistrar, srv CatalogServiceServer) {
	s.RegisterService(&catalogServiceDesc, srv)
}

var catalogServiceDesc = grpc.ServiceDesc{
	ServiceName: CatalogServiceName,
	HandlerType: (*CatalogServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ListProducts",
			Handler:    listProductsHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: catalogServiceProtoSource,
}

func listProductsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CatalogServiceServer).ListProducts(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: listProductsFullMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CatalogServiceServer).ListProducts(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

type CatalogService struct {
	catalogUC usecase.CatalogUC
	logger    logger.Logger
}

func NewCatalogService(catalogUC usecase.CatalogUC, logger logger.Logger) *CatalogService {
	return &CatalogService{catalogUC: catalogUC, logger: logger}
}

func (g *CatalogService) ListProducts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const op = "grpc.ListProducts"

	criteria, err := toFilterCriteria(req)
	if err != nil {
		return nil, GRPCErrorResponse(e.Wrap(op, err))
	}

	products, err := g.catalogUC.ListProducts(ctx, criteria)
	if err != nil {
		g.logger.Errorf(e.Wrap(op, err), "%s", op)
		return nil, GRPCErrorResponse(e.Wrap(op, err))
	}

	res, err := structpb.NewStruct(map[string]any{
		"products": toArrGRPCProduct(products),
	})
	if err != nil {
		return nil, GRPCErrorResponse(e.Wrap(op, err))
	}

	return res, nil
}

// toFilterCriteria возвращает nil, если ни одно поле фильтра не задано.
func toFilterCriteria(req *structpb.Struct) (*domain.FilterCriteria, error) {
	fields := req.GetFields()

	category, hasCategory := fields["category"]
	minPrice, hasMin := fields["min_price"]
	maxPrice, hasMax := fields["max_price"]
	if !hasCategory && !hasMin && !hasMax {
		return nil, nil
	}

	criteria := domain.NewFilterCriteria(category.GetStringValue(), 0, domain.MaxPrice)

	if hasMin {
		cents, err := domain.ParsePrice(minPrice.GetStringValue())
		if err != nil {
			return nil, err
		}
		criteria.MinPrice = cents
	}

	if hasMax {
		cents, err := domain.ParsePrice(maxPrice.GetStringValue())
		if err != nil {
			return nil, err
		}
		criteria.MaxPrice = cents
	}

	return criteria, nil
}

func toGRPCProduct(pr domain.Product) map[string]any {
	res := map[string]any{
		"id":       pr.ID,
		"name":     pr.Name,
		"category": pr.Category,
		"price":    domain.PriceToDecimal(pr.Price).StringFixed(2),
	}
	if pr.Description != "" {
		res["description"] = pr.Description
	}
	if pr.ImageURL != "" {
		res["image_url"] = pr.ImageURL
	}

	return res
}

func toArrGRPCProduct(products []domain.Product) []any {
	res := make([]any, 0, len(products))
	for _, pr := range products {
		res = append(res, toGRPCProduct(pr))
	}

	return res
}
