package catalog

import "dinepick/pkg/types"

// seed is the reference restaurant list shipped with the server.
var seed = []types.Candidate{
	{
		ID:       "1",
		Name:     "Spice Garden",
		Location: "Bandra West",
		Cuisines: []string{"North Indian", "Chinese"},
		Image:    "https://images.unsplash.com/photo-1517248135467-4c7edcad34c4?w=500&auto=format&fit=crop&q=60",
		URL:      "https://example.com/spice-garden",
		Rating:   4.5,
		Price:    "₹₹",
		Phone:    "+91 98765 43210",
		Address:  "123 Linking Road, Bandra West, Mumbai",
	},
	{
		ID:       "2",
		Name:     "Pizza Paradise",
		Location: "Andheri East",
		Cuisines: []string{"Italian", "Fast Food"},
		Image:    "https://images.unsplash.com/photo-1513104890138-7c749659a591?w=500&auto=format&fit=crop&q=60",
		URL:      "https://example.com/pizza-paradise",
		Rating:   4.2,
		Price:    "₹₹",
		Phone:    "+91 98765 43211",
		Address:  "456 MG Road, Andheri East, Mumbai",
	},
	{
		ID:       "3",
		Name:     "Sushi Master",
		Location: "Powai",
		Cuisines: []string{"Japanese", "Seafood"},
		Image:    "https://images.unsplash.com/photo-1579871494447-9811cf80d66c?w=500&auto=format&fit=crop&q=60",
		URL:      "https://example.com/sushi-master",
		Rating:   4.7,
		Price:    "₹₹₹",
		Phone:    "+91 98765 43212",
		Address:  "789 Hiranandani Gardens, Powai, Mumbai",
	},
	{
		ID:       "4",
		Name:     "Cafe Mocha",
		Location: "Colaba",
		Cuisines: []string{"Cafe", "Continental"},
		Image:    "https://images.unsplash.com/photo-1554118811-1e0d58224f24?w=500&auto=format&fit=crop&q=60",
		URL:      "https://example.com/cafe-mocha",
		Rating:   4.3,
		Price:    "₹₹",
		Phone:    "+91 98765 43213",
		Address:  "321 Colaba Causeway, Colaba, Mumbai",
	},
	{
		ID:       "5",
		Name:     "Taco Fiesta",
		Location: "Lower Parel",
		Cuisines: []string{"Mexican", "Street Food"},
		Image:    "https://images.unsplash.com/photo-1565299585323-38d6b0865b47?w=500&auto=format&fit=crop&q=60",
		URL:      "https://example.com/taco-fiesta",
		Rating:   4.4,
		Price:    "₹₹",
		Phone:    "+91 98765 43214",
		Address:  "567 Phoenix Market City, Lower Parel, Mumbai",
	},
}

// Restaurants returns a copy of the built-in restaurant list.
func Restaurants() []types.Candidate {
	return clone(seed)
}
