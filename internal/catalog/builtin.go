package catalog

import "github.com/agrilens/agrilens/control-plane/pkg/models"

type categoryDef struct {
	id, name, icon, emoji, color string
	conditions                   []string
}

// loadBuiltinDefaults registers the crop categories, curated treatments and
// knowledge base entries that ship with AgriLens.
func (c *Catalog) loadBuiltinDefaults() {
	defs := []categoryDef{
		{"apple", "Apple", "Apple", "🍎", "from-red-400 to-red-600",
			[]string{"Apple___Apple_scab", "Apple___Black_rot", "Apple___Cedar_apple_rust", "Apple___healthy"}},
		{"corn", "Corn", "Wheat", "🌽", "from-yellow-400 to-yellow-600",
			[]string{"Corn_(maize)___Cercospora_leaf_spot", "Corn_(maize)___Common_rust", "Corn_(maize)___Northern_Leaf_Blight", "Corn_(maize)___healthy"}},
		{"grape", "Grape", "Grape", "🍇", "from-purple-400 to-purple-600",
			[]string{"Grape___Black_rot", "Grape___Esca_(Black_Measles)", "Grape___Leaf_blight", "Grape___healthy"}},
		{"tomato", "Tomato", "Cherry", "🍅", "from-red-400 to-red-500",
			[]string{"Tomato___Bacterial_spot", "Tomato___Early_blight", "Tomato___Late_blight", "Tomato___Leaf_Mold",
				"Tomato___Septoria_leaf_spot", "Tomato___Spider_mites", "Tomato___Target_Spot",
				"Tomato___Tomato_Yellow_Leaf_Curl_Virus", "Tomato___Tomato_mosaic_virus", "Tomato___healthy"}},
		{"orange", "Orange", "Orange", "🍊", "from-orange-400 to-orange-600",
			[]string{"Orange___Haunglongbing_(Citrus_greening)", "Orange___healthy"}},
		{"strawberry", "Strawberry", "Cherry", "🍓", "from-pink-400 to-red-500",
			[]string{"Strawberry___Leaf_scorch", "Strawberry___healthy"}},
		{"potato", "Potato", "Potato", "🥔", "from-amber-600 to-yellow-700",
			[]string{"Potato___Early_blight", "Potato___Late_blight", "Potato___healthy"}},
		{"insect", "Insect Pests", "Bug", "🐛", "from-amber-400 to-amber-600",
			[]string{"Aphids", "Caterpillars", "Beetles", "Thrips", "Whiteflies", "Spider_mites"}},
	}

	treatments := map[string]models.TreatmentInfo{
		"Apple___Apple_scab": {
			Title:       "Apple Scab Treatment",
			Description: "Apple scab is a fungal disease that affects apple trees, causing dark spots on leaves and fruit.",
			Steps: []string{
				"Remove and destroy fallen leaves to reduce fungal spores",
				"Apply fungicide sprays during spring before symptoms appear",
				"Ensure proper air circulation by pruning dense branches",
				"Choose scab-resistant apple varieties for future plantings",
			},
			Prevention: []string{
				"Plant resistant varieties",
				"Maintain good sanitation practices",
				"Ensure adequate spacing between trees",
				"Apply preventive fungicide treatments",
			},
		},
		"Tomato___Late_blight": {
			Title:       "Late Blight Management",
			Description: "Late blight is a serious fungal disease that can destroy tomato crops rapidly.",
			Steps: []string{
				"Remove affected plant parts immediately",
				"Apply copper-based fungicides",
				"Improve air circulation around plants",
				"Avoid overhead watering",
				"Consider destroying severely infected plants",
			},
			Prevention: []string{
				"Use certified disease-free seeds",
				"Practice crop rotation",
				"Maintain proper plant spacing",
				"Water at soil level to keep foliage dry",
			},
		},
		"Strawberry___Leaf_scorch": {
			Title:       "Strawberry Leaf Scorch Treatment",
			Description: "Leaf scorch is a fungal disease that causes browning and scorching of strawberry leaves, reducing plant vigor.",
			Steps: []string{
				"Remove and destroy affected leaves immediately",
				"Apply appropriate fungicides during early growing season",
				"Improve air circulation by thinning dense plantings",
				"Ensure proper drainage to reduce moisture levels",
				"Avoid overhead irrigation during humid conditions",
			},
			Prevention: []string{
				"Plant resistant strawberry varieties",
				"Maintain proper plant spacing",
				"Use drip irrigation instead of overhead watering",
				"Apply preventive fungicide treatments in early spring",
			},
		},
		"Potato___healthy": {
			Title:       "Maintaining Healthy Potatoes",
			Description: "Healthy potato plants show vigorous growth and are free from disease and pest damage.",
			Steps: []string{
				"Continue current cultivation practices",
				"Monitor regularly for early signs of disease or pests",
				"Maintain consistent watering schedule",
				"Ensure adequate nutrition throughout growing season",
			},
			Prevention: []string{
				"Use certified seed potatoes",
				"Practice proper crop rotation",
				"Maintain soil health with organic matter",
				"Monitor and control weeds regularly",
			},
		},
	}

	knowledge := []models.KnowledgeItem{
		{
			ID: "apple-scab", Name: "Apple Scab", Category: "Apple", Type: models.HealthDisease,
			Causes:     []string{"Venturia inaequalis fungus", "High humidity", "Cool, wet weather conditions"},
			Symptoms:   []string{"Dark, scabby spots on leaves", "Fruit surface lesions", "Premature leaf drop", "Reduced fruit quality"},
			Treatment:  []string{"Fungicide applications", "Cultural practices", "Resistant varieties"},
			Prevention: []string{"Sanitation", "Proper spacing", "Preventive sprays"},
			Image:      "https://images.pexels.com/photos/574919/pexels-photo-574919.jpeg",
		},
		{
			ID: "tomato-healthy", Name: "Healthy Tomato", Category: "Tomato", Type: models.HealthHealthy,
			Causes:     []string{"Proper nutrition", "Adequate water", "Good growing conditions"},
			Symptoms:   []string{"Vibrant green foliage", "Strong stem structure", "Normal fruit development"},
			Treatment:  []string{"Continue current care practices"},
			Prevention: []string{"Maintain consistent watering", "Provide adequate nutrition", "Monitor for early signs of problems"},
			Image:      "https://images.pexels.com/photos/1327838/pexels-photo-1327838.jpeg",
		},
		{
			ID: "strawberry-leaf-scorch", Name: "Strawberry Leaf Scorch", Category: "Strawberry", Type: models.HealthDisease,
			Causes:     []string{"Diplocarpon earlianum fungus", "High humidity", "Poor air circulation", "Wet conditions"},
			Symptoms:   []string{"Brown, scorched leaf margins", "Purple to reddish-brown spots", "Leaf wilting and drop", "Reduced plant vigor"},
			Treatment:  []string{"Fungicide applications", "Remove affected foliage", "Improve drainage"},
			Prevention: []string{"Resistant varieties", "Proper spacing", "Avoid overhead watering"},
			Image:      "https://images.pexels.com/photos/4750270/pexels-photo-4750270.jpeg",
		},
		{
			ID: "potato-healthy", Name: "Healthy Potato", Category: "Potato", Type: models.HealthHealthy,
			Causes:     []string{"Good soil conditions", "Proper nutrition", "Adequate moisture", "Disease-free seed"},
			Symptoms:   []string{"Lush green foliage", "Strong stem growth", "Normal flowering", "Vigorous plant development"},
			Treatment:  []string{"Continue current practices", "Regular monitoring"},
			Prevention: []string{"Crop rotation", "Quality seed potatoes", "Soil health maintenance"},
			Image:      "https://images.pexels.com/photos/144248/potatoes-vegetables-erdfrucht-bio-144248.jpeg",
		},
	}

	c.mu.Lock()
	for _, d := range defs {
		c.categories = append(c.categories, models.CropCategory{
			ID:         d.id,
			Name:       d.name,
			Emoji:      d.emoji,
			Conditions: d.conditions,
			Icon:       ResolveIcon(d.icon, d.color),
		})
	}
	for label, t := range treatments {
		c.treatments[label] = t
	}
	c.knowledge = append(c.knowledge, knowledge...)
	c.mu.Unlock()
}
