package models

// Item is a read-only view of the external product catalog. Only the
// columns used for filtering are mapped.
type Item struct {
	ItemCode     string  `gorm:"column:ItemCode;primaryKey;type:varchar(64)" json:"ItemCode"`
	ItemCodeDesc string  `gorm:"column:ItemCodeDesc" json:"ItemCodeDesc"`
	InactiveItem string  `gorm:"column:InactiveItem" json:"InactiveItem"`
	ProductType  string  `gorm:"column:ProductType" json:"ProductType"`
	ProductLine  string  `gorm:"column:ProductLine" json:"ProductLine"`
	Category1    *string `gorm:"column:Category1" json:"Category1"`
	Category2    *string `gorm:"column:Category2" json:"Category"`
	Category3    *string `gorm:"column:Category3" json:"ItemCollection"`
	Category4    *string `gorm:"column:Category4" json:"BaseSKU"`
}

// TableName returns the catalog table name
func (Item) TableName() string {
	return "ci_item"
}
