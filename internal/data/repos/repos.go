package repos

import (
	"gorm.io/gorm"

	"github.com/hedspi/phone-assistant/internal/data/repos/catalog"
	"github.com/hedspi/phone-assistant/internal/data/repos/chat"
	"github.com/hedspi/phone-assistant/internal/platform/logger"
)

type ProductRepo = catalog.ProductRepo
type MessageRepo = chat.MessageRepo

func NewProductRepo(db *gorm.DB, log *logger.Logger) ProductRepo {
	return catalog.NewProductRepo(db, log)
}

func NewMessageRepo(db *gorm.DB, log *logger.Logger) MessageRepo {
	return chat.NewMessageRepo(db, log)
}
