package catalog

// CategoryAll selects every product.
const CategoryAll = "all"

// Product is one bike in the storefront catalog.
type Product struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Category      string   `json:"category"`
	CategoryLabel string   `json:"categoryLabel"`
	Badge         string   `json:"badge"`
	Price         float64  `json:"price"`
	Lead          string   `json:"lead"`
	Tagline       string   `json:"tagline"`
	Features      []string `json:"features"`
	Packages      []string `json:"packages"`
	Range         string   `json:"range"`
	Availability  string   `json:"availability"`
	Support       string   `json:"support"`
	Status        string   `json:"status"`
	Image         string   `json:"image"`
	ImageAlt      string   `json:"imageAlt"`
}

// Category is a distinct product grouping with its display label.
type Category struct {
	Slug  string `json:"slug"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

var products = []Product{
	{
		ID:            "tenways-cgo-one",
		Name:          "Tenways CGO One",
		Category:      "urban",
		CategoryLabel: "Urban",
		Badge:         "Urban Launch 2024",
		Price:         2899,
		Lead:          "Kevyt hiilikuiturunko, hihnaveto ja 90 km kantama. Sisältää AnomFIN Launch Care 299 -palvelun.",
		Tagline:       "Kevyt hiilikuiturunko • 90 km kantama",
		Features: []string{
			"Gates CDX -hihnaveto ja hiilikuiturunko luottokäyttöön",
			"Mission Control -seuranta ja varashälytin etäkäytöllä",
			"Premium-akku 36 V / 252 Wh – vaihto 24 h palvelulupauksella",
		},
		Packages: []string{
			"Launch Care 10 pyörälle • 790 € / kuukausi",
			"Telematiikka & kuljettajaraportointi • 39 € / ajoneuvo",
			"Winter Ready -varustepaketti • 420 €",
		},
		Range:        "Kantama 90 km • 35 Nm vääntö",
		Availability: "Saatavuus: Helsinki Fulfillment 6 kpl",
		Support:      "Launch Care 299 sisältyy • 24 h käyttöönotto",
		Status:       "Urban varasto • 6 pyörää valmiina toimitukseen",
		Image:        "https://images.unsplash.com/photo-1529429617124-aee711a0fb7c?auto=format&fit=crop&w=1400&q=80",
		ImageAlt:     "Tenways CGO One sähköpyörä showroomissa",
	},
	{
		ID:            "specialized-turbo-como",
		Name:          "Specialized Turbo Como IGH",
		Category:      "comfort",
		CategoryLabel: "Comfort",
		Badge:         "Executive Fleet",
		Price:         3990,
		Lead:          "Älykäs näytöllinen ajotuki, sisäinen johdotus ja integroidut valot. Premium Pro Active 699 -huoltotaso.",
		Tagline:       "Auto Shift IGH • Älykäs ajotuki",
		Features: []string{
			"Automatisoitu IGH-vaihteisto ja 90 Nm tukimoottori",
			"Custom-tasapainotetut akkumoduulit 710 Wh kapasiteetilla",
			"Connected Service -portaali yritysflotille",
		},
		Packages: []string{
			"Executive Comfort -paketti (nahkasatulat & lokasuojat) • 290 €",
			"Premium Pro Active 699 • sis. 36 kk huoltosopimus",
			"Työsuhdepyörä leasing -sopimus alk. 119 € / kk",
		},
		Range:        "Kantama 130 km • 710 Wh akku",
		Availability: "Saatavuus: Euroopan keskusvarasto 12 kpl",
		Support:      "Premium Pro Active 699 sisältyy • Concierge-asennus",
		Status:       "Comfort toimituslinja • varmistettu 7 pv toimitus",
		Image:        "https://images.unsplash.com/photo-1523419409543-0c1df022bdd9?auto=format&fit=crop&w=1400&q=80",
		ImageAlt:     "Specialized Turbo Como sähköpyörä urbaanissa miljöössä",
	},
	{
		ID:            "tern-gsd-performance",
		Name:          "Tern GSD Performance Duo",
		Category:      "cargo",
		CategoryLabel: "Cargo",
		Badge:         "Logistics Workhorse",
		Price:         5490,
		Lead:          "Yritystason jakelupyörä kaksoisakkujärjestelmällä ja Bosch Cargo Line -moottorilla.",
		Tagline:       "Bosch Cargo Line • Kaksoisakku 1000 Wh",
		Features: []string{
			"Kantavuus 200 kg ja modulaarinen kuormateline",
			"Bosch Cargo Line Gen4 85 Nm moottori",
			"Hydrauliset Magura MT5e -jarrut 4-mäntätekniikalla",
		},
		Packages: []string{
			"Fleet Signature 1499 • sisältää koulutuksen & telematiikan",
			"Last Mile -lisävarustesetti • 610 €",
			"Huoltosopimus 36 kk • 49 € / kk",
		},
		Range:        "Kantama 160 km • DualBattery 1000 Wh",
		Availability: "Saatavuus: Nordic Logistics Hub 4 kpl",
		Support:      "Fleet Signature 1499 sisältyy • 48 h huoltolupaus",
		Status:       "Cargo fulfillment • 4 yksikköä tuotantolinjalla",
		Image:        "https://images.unsplash.com/photo-1502877338535-766e1452684a?auto=format&fit=crop&w=1400&q=80",
		ImageAlt:     "Tern GSD kuljetussähköpyörä ulkona",
	},
	{
		ID:            "vanmoof-s5",
		Name:          "VanMoof S5",
		Category:      "design",
		CategoryLabel: "Design",
		Badge:         "Design Icon",
		Price:         3690,
		Lead:          "Integroitu varashälytin ja automaattinen vaihteisto. Sisältää kahden vuoden AnomFIN-takuun.",
		Tagline:       "Stealth-design • Integroitu hälytin",
		Features: []string{
			"Halo LED -valosignatuurit ja automaattinen vaihteisto",
			"Theft Defense -palvelu ja GPS-seuranta",
			"Hydrauliset levyjarrut ja älykkäät turvamoodit",
		},
		Packages: []string{
			"Design Concierge -personointi • 180 €",
			"Kaupunkihuolto 24 kk • 32 € / kk",
			"Kasko & vastuuvakuutus • 19 € / kk",
		},
		Range:        "Kantama 150 km • 68 Nm automaattinen boost",
		Availability: "Saatavuus: Launch Studio Amsterdam 8 kpl",
		Support:      "AnomFIN Design Guarantee 24 kk sisältyy",
		Status:       "Design studio • 8 yksikköä varattavissa nyt",
		Image:        "https://images.unsplash.com/photo-1466978913421-dad2ebd01d17?auto=format&fit=crop&w=1400&q=80",
		ImageAlt:     "VanMoof S5 sähköpyörä minimalistisessa studiossa",
	},
	{
		ID:            "riese-muller-load-75",
		Name:          "Riese & Müller Load 75 Touring",
		Category:      "cargo",
		CategoryLabel: "Cargo",
		Badge:         "Utility Elite",
		Price:         7290,
		Lead:          "Saksalainen premium-lastauspyörä rohkeaan kunnalliskäyttöön. Fox Float -jousitus ja ABS-jarrut.",
		Tagline:       "ABS-jarrut • Fox Float -jousitus",
		Features: []string{
			"ABS-levyjarrut ja korkeasäiliöinen kuormatila",
			"Bosch Cargo Line Speed 85 Nm moottori",
			"High-Sided Walls -paketti ja säänkestävä kate",
		},
		Packages: []string{
			"Kunnalliskäyttö -konversio • 980 €",
			"Fleet Control -telemetria • 69 € / kk",
			"Huoltotakuu 48 kk • 79 € / kk",
		},
		Range:        "Kantama 120 km • DualBattery 1125 Wh",
		Availability: "Saatavuus: Saksa tehdaslinja 5 kpl",
		Support:      "Concierge Logistics -paketti sisältyy",
		Status:       "Tehdaslinja • 5 yksikköä varattavissa tuotannosta",
		Image:        "https://images.unsplash.com/photo-1616530940355-351fabd9524b?auto=format&fit=crop&w=1400&q=80",
		ImageAlt:     "Riese & Müller Load 75 Touring sähkörahtipyörä",
	},
	{
		ID:            "gazelle-ultimate-c380",
		Name:          "Gazelle Ultimate C380 HMB",
		Category:      "comfort",
		CategoryLabel: "Comfort",
		Badge:         "Commuter Premium",
		Price:         3490,
		Lead:          "Enviolo-vaihteisto ja hihnaveto tekevät työmatkoista saumattomia. Sisältää yritysleasing-konfiguraation.",
		Tagline:       "Enviolo Trekking • Gates-hihnaveto",
		Features: []string{
			"Enviolo-vaihteisto portaattomalla säädöllä",
			"Bosch Performance Line 75 Nm",
			"Integroitu 625 Wh akku ja Supernova-valot",
		},
		Packages: []string{
			"Commuter Care 24 kk • 28 € / kk",
			"Showroom-sovitus ja ajoergonomian kartoitus • sisältyy",
			"Lisäakku 500 Wh • 520 €",
		},
		Range:        "Kantama 110 km • 625 Wh akku",
		Availability: "Saatavuus: Benelux varasto 9 kpl",
		Support:      "Commuter Care sisältyy • 36 h varastovaraus",
		Status:       "Comfort tuotanto • 9 yksikköä heti toimitukseen",
		Image:        "https://images.unsplash.com/photo-1604147495798-57beb5d6af73?auto=format&fit=crop&w=1400&q=80",
		ImageAlt:     "Gazelle Ultimate C380 sähköpyörä kaupunkimaisemassa",
	},
}
