package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	config "github.com/DRSN-tech/marketplace/internal/cfg"
	"github.com/DRSN-tech/marketplace/internal/domain"
	"github.com/DRSN-tech/marketplace/internal/repository/pgdb"
	pgdbConv "github.com/DRSN-tech/marketplace/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/marketplace/internal/usecase"
	"github.com/DRSN-tech/marketplace/pkg/closer"
	"github.com/DRSN-tech/marketplace/pkg/e"
	"github.com/DRSN-tech/marketplace/pkg/logger"
	"github.com/jimlawless/whereami"
	"gopkg.in/yaml.v3"
)

const maxImageSize = 10 << 20

// catalogFile — формат файла импорта:
//
//	products:
//	  - name: Hammer
//	    category: tools
//	    price: "10.50"
//	    description: Steel claw hammer
//	    image: images/hammer.jpg # путь относительно файла каталога
type catalogFile struct {
	Products []catalogItem `yaml:"products"`
}

type catalogItem struct {
	Name        string `yaml:"name"`
	Category    string `yaml:"category"`
	Price       string `yaml:"price"`
	Description string `yaml:"description"`
	Image       string `yaml:"image"`
}

// Import загружает каталог из YAML-файла в PostgreSQL и MinIO и обновляет индекс поиска.
func Import(ctx context.Context, cfg *config.Config, path string, logger logger.Logger) (*usecase.ImportCatalogRes, error) {
	req, err := loadCatalogFile(path)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	c := closer.NewCloser(forcedCloseTimeout)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := c.Close(closeCtx); err != nil {
			logger.Errorf(err, "failed to release resources")
		}
	}()

	st, err := connectStores(ctx, cfg, logger, c)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	searchUC, err := newSearchUC(cfg, st, logger, c)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	importUC := usecase.NewImportUC(
		st.productRepo,
		st.categoryRepo,
		pgdb.NewOutboxEventRepo(st.db.Pool, pgdbConv.NewOutboxEventConverter()),
		st.db.Pool,
		st.imagesInfra,
		st.cacheRepo,
		searchUC,
		logger,
	)

	return importUC.ImportCatalog(ctx, req)
}

// loadCatalogFile читает каталог и изображения. Цены переводятся в копейки.
func loadCatalogFile(path string) (*usecase.ImportCatalogReq, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	req := &usecase.ImportCatalogReq{Products: make([]usecase.ImportProductReq, 0, len(file.Products))}
	for i, item := range file.Products {
		price, err := domain.ParsePrice(item.Price)
		if err != nil {
			return nil, fmt.Errorf("product #%d %q: %w", i+1, item.Name, err)
		}

		product := usecase.ImportProductReq{
			Name:         item.Name,
			CategoryName: item.Category,
			Price:        price,
			Description:  item.Description,
		}

		if item.Image != "" {
			image, err := readImage(dir, item.Image)
			if err != nil {
				return nil, fmt.Errorf("product #%d %q: %w", i+1, item.Name, err)
			}
			product.Image = image
		}

		req.Products = append(req.Products, product)
	}

	return req, nil
}

func readImage(dir, name string) (*usecase.ProductImage, error) {
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, name)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxImageSize {
		return nil, e.Wrap(path, e.ErrFileTooLarge)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return usecase.NewProductImage(data, http.DetectContentType(data), filepath.Base(path)), nil
}
