package sauto

import "car-advisor/pkg/models"

type codebook struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	SEOName string `json:"seo_name"`
}

type image struct {
	URL string `json:"url"`
}

type searchResponse struct {
	Results    []searchItem `json:"results"`
	Pagination struct {
		Total  int `json:"total"`
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
	} `json:"pagination"`
}

type searchItem struct {
	ID                models.ListingID `json:"id"`
	Name              string           `json:"name"`
	Price             int              `json:"price"`
	Tachometer        int              `json:"tachometer"`
	ManufacturingDate string           `json:"manufacturing_date"`
	SortingDate       string           `json:"sorting_date"`
	Manufacturer      *codebook        `json:"manufacturer_cb"`
	Model             *codebook        `json:"model_cb"`
	Images            []image          `json:"images"`
	Locality          *struct {
		District     string `json:"district"`
		Municipality string `json:"municipality"`
	} `json:"locality"`
}

type detailResponse struct {
	Result *detailItem `json:"result"`
}

type detailItem struct {
	ID                models.ListingID `json:"id"`
	Name              string           `json:"name"`
	Price             int              `json:"price"`
	Tachometer        int              `json:"tachometer"`
	ManufacturingDate string           `json:"manufacturing_date"`
	VIN               string           `json:"vin"`
	Fuel              *codebook        `json:"fuel_cb"`
	Gearbox           *codebook        `json:"gearbox_cb"`
	EnginePower       int              `json:"engine_power"`
	Equipment         []codebook       `json:"equipment_cb"`
	Description       string           `json:"description"`
	Images            []image          `json:"images"`
	Manufacturer      *codebook        `json:"manufacturer_cb"`
	Model             *codebook        `json:"model_cb"`
	Body              *codebook        `json:"vehicle_body_cb"`
	Color             *codebook        `json:"color_cb"`
	Condition         *codebook        `json:"condition_cb"`
	CountryOfOrigin   *codebook        `json:"country_of_origin_cb"`
	STKDate           string           `json:"stk_date"`
	FirstOwner        bool             `json:"first_owner"`
	CrashedInPast     bool             `json:"crashed_in_past"`
	Phone             string           `json:"phone"`
	SellerInfo        *struct {
		SellerName string `json:"seller_name"`
		Location   *struct {
			Title string `json:"title"`
		} `json:"location"`
		SellerPhones []struct {
			Phone string `json:"phone"`
		} `json:"seller_phones"`
	} `json:"seller_info"`
	User *struct {
		UserService *struct {
			ShopName string `json:"shop_name"`
			ShopURL  string `json:"shop_url"`
		} `json:"user_service"`
	} `json:"user"`
}
