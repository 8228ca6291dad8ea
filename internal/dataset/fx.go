package dataset

import (
	"github.com/smallbiznis/dataverse/internal/contentstore"
	"github.com/smallbiznis/dataverse/internal/dataset/repository"
	"github.com/smallbiznis/dataverse/internal/dataset/service"
	"go.uber.org/fx"
)

var Module = fx.Module("dataset.service",
	fx.Provide(repository.Provide),
	fx.Provide(func(c *contentstore.Client) service.ContentUploader { return c }),
	fx.Provide(service.New),
)
