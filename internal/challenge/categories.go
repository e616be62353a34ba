package challenge

// DefaultCategories is the curated list of image-heavy communities used when
// no list is configured. Labels are lowercase; they double as the correct
// answers players must guess.
var DefaultCategories = []string{
	"aww",
	"earthporn",
	"foodporn",
	"itookapicture",
	"pics",
	"mildlyinteresting",
	"oddlysatisfying",
	"natureisfuckinglit",
	"cityporn",
	"cats",
	"dogs",
	"rarepuppers",
	"architecture",
	"abandonedporn",
	"spaceporn",
	"astrophotography",
	"macrophotography",
	"birding",
	"aquariums",
	"houseplants",
	"gardening",
	"baking",
	"pizza",
	"sushi",
	"ramen",
	"streetphotography",
	"analog",
	"carporn",
	"motorcycles",
	"cozyplaces",
	"roomporn",
	"designporn",
	"art",
	"painting",
	"watercolor",
	"sculpture",
	"woodworking",
	"knitting",
	"crochet",
	"hiking",
	"camping",
	"skyporn",
	"weatherporn",
	"villageporn",
	"ruralporn",
}
