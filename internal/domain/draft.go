package domain

// Product categories accepted by the seller form.
const (
	CategoryMobiles    = "mobiles"
	CategoryLaptops    = "laptops"
	CategoryCameras    = "cameras"
	CategoryHeadphones = "headphones"
	CategoryIpads      = "ipads"
	CategoryDrones     = "drones"
)

// Categories lists the accepted categories in display order.
var Categories = []string{
	CategoryMobiles, CategoryLaptops, CategoryCameras,
	CategoryHeadphones, CategoryIpads, CategoryDrones,
}

// FileUpload is an in-memory file attached to a product draft.
type FileUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ProductDraft is a new product as entered by a seller. Field names in the
// form tags are the multipart field names the backend expects.
type ProductDraft struct {
	Name          string  `form:"name" validate:"required,max=200"`
	Category      string  `form:"category" validate:"required,oneof=mobiles laptops cameras headphones ipads drones"`
	Description   string  `form:"description" validate:"required,max=5000"`
	Stock         int     `form:"stock" validate:"gte=0"`
	OriginalPrice float64 `form:"originalPrice" validate:"gt=0"`
	OfferedPrice  float64 `form:"offeredPrice" validate:"gt=0,ltefield=OriginalPrice"`
	Features      string  `form:"features" validate:"max=5000"`

	Avatar *FileUpload   `form:"productAvatar" validate:"-"`
	Images []*FileUpload `form:"images" validate:"-"`
}
