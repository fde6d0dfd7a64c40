package ledger

// UnknownCategory is assigned to transactions whose MCC is missing or unmapped
const UnknownCategory = "Unknown"

var mccCategories = map[string]string{
	"4111": "Transport",
	"4121": "Taxi",
	"4131": "Transport",
	"4511": "Travel",
	"4722": "Travel",
	"4784": "Transport",
	"4789": "Transport",
	"4812": "Telecom",
	"4814": "Telecom",
	"4816": "Internet",
	"4829": "Transfers",
	"4899": "Subscriptions",
	"4900": "Utilities",
	"5045": "Electronics",
	"5200": "Home",
	"5211": "Home",
	"5251": "Home",
	"5261": "Home",
	"5311": "Shopping",
	"5331": "Shopping",
	"5399": "Shopping",
	"5411": "Groceries",
	"5422": "Groceries",
	"5441": "Groceries",
	"5451": "Groceries",
	"5462": "Groceries",
	"5499": "Groceries",
	"5541": "Fuel",
	"5542": "Fuel",
	"5651": "Clothing",
	"5661": "Clothing",
	"5691": "Clothing",
	"5699": "Clothing",
	"5712": "Home",
	"5722": "Electronics",
	"5732": "Electronics",
	"5734": "Software",
	"5812": "Restaurants",
	"5813": "Restaurants",
	"5814": "Fast food",
	"5815": "Digital goods",
	"5816": "Games",
	"5817": "Software",
	"5818": "Digital goods",
	"5912": "Pharmacy",
	"5942": "Books",
	"5945": "Hobbies",
	"5977": "Beauty",
	"5992": "Gifts",
	"5995": "Pets",
	"5999": "Shopping",
	"6011": "Cash",
	"6012": "Financial services",
	"6300": "Insurance",
	"6538": "Transfers",
	"7011": "Travel",
	"7230": "Beauty",
	"7298": "Beauty",
	"7372": "Software",
	"7399": "Services",
	"7512": "Car rental",
	"7523": "Parking",
	"7832": "Entertainment",
	"7922": "Entertainment",
	"7997": "Sport",
	"7999": "Entertainment",
	"8011": "Health",
	"8021": "Health",
	"8062": "Health",
	"8099": "Health",
	"8220": "Education",
	"8299": "Education",
	"9311": "Taxes",
	"9399": "Government",
}

// Category maps a merchant category code to its label
func Category(mcc string) string {
	if label, ok := mccCategories[mcc]; ok {
		return label
	}
	return UnknownCategory
}
