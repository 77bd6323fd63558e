package model

// FieldMap names the export columns that carry each semantic role. Empty
// names mean the role is absent from the export.
type FieldMap struct {
	SaleDate      string `yaml:"sale_date" mapstructure:"sale_date"`
	DeliveryDate  string `yaml:"delivery_date" mapstructure:"delivery_date"`
	Branch        string `yaml:"branch" mapstructure:"branch"`
	Partner       string `yaml:"partner" mapstructure:"partner"`
	Responsible   string `yaml:"responsible" mapstructure:"responsible"`
	Category      string `yaml:"category" mapstructure:"category"`
	ProductType   string `yaml:"product_type" mapstructure:"product_type"`
	LinkedOrder   string `yaml:"linked_order" mapstructure:"linked_order"`
	OriginalOrder string `yaml:"original_order" mapstructure:"original_order"`
}
