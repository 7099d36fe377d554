package pipeline

import "github.com/nanobanana/supermarket/internal/models"

// Catalog is the static transformation list served to clients. Display
// ordering is a client concern; the server always returns this order.
var Catalog = []models.Transformation{
	{
		Title:       "Custom Edit",
		Prompt:      models.CustomPrompt,
		Emoji:       "✏️",
		Description: "Describe any change you want to see in your own words.",
	},
	{
		Title:                        "Line Art Coloring",
		Prompt:                       "Convert this photo into clean black-and-white line art. Use confident, even-weight outlines, drop all shading and color, and keep the composition intact.",
		Emoji:                        "🎨",
		Description:                  "Turn a photo into line art, then color it with your own palette.",
		IsMultiImage:                 true,
		IsTwoStep:                    true,
		StepTwoPrompt:                "Color this line art using only the colors found in the reference palette image. Stay inside the lines and keep the line work visible.",
		PrimaryUploaderTitle:         "Photo",
		PrimaryUploaderDescription:   "The picture to redraw as line art.",
		SecondaryUploaderTitle:       "Color palette",
		SecondaryUploaderDescription: "An image whose colors will be used for the coloring step.",
	},
	{
		Title:       "Collectible Figurine",
		Prompt:      "Turn the subject of this image into a glossy collectible vinyl figurine standing on a round display base, studio lighting, shallow depth of field.",
		Emoji:       "🧸",
		Description: "Your photo as a boxed collectible figure.",
	},
	{
		Title:       "Sticker Pack",
		Prompt:      "Redraw the subject as a die-cut glossy sticker with a thick white border and a simple drop shadow on a transparent background.",
		Emoji:       "🏷️",
		Description: "A die-cut sticker version of your image.",
	},
	{
		Title:                        "Outfit Swap",
		Prompt:                       "Dress the person in the first image in the outfit shown in the second image. Keep the person's face, pose and background unchanged.",
		Emoji:                        "👗",
		Description:                  "Borrow an outfit from a second photo.",
		IsMultiImage:                 true,
		PrimaryUploaderTitle:         "Person",
		PrimaryUploaderDescription:   "The person to dress.",
		SecondaryUploaderTitle:       "Outfit",
		SecondaryUploaderDescription: "A photo of the clothing to borrow.",
	},
	{
		Title:       "Photo Restore",
		Prompt:      "Restore this old photograph: repair scratches and tears, correct fading and color casts, and sharpen softly without inventing new details.",
		Emoji:       "🩹",
		Description: "Repair and recolor an old or damaged photo.",
	},
	{
		Title:       "Cartoon Portrait",
		Prompt:      "Redraw this image as a vibrant cartoon portrait with bold outlines, flat cel shading and a simple complementary background.",
		Emoji:       "😺",
		Description: "A bold cartoon version of your photo.",
	},
	{
		Title:       "Golden Hour",
		Prompt:      "Relight this photo as if taken during golden hour: warm low-angle sunlight, long soft shadows, gentle lens glow. Keep all subjects unchanged.",
		Emoji:       "🌇",
		Description: "Relight any photo with warm sunset light.",
	},
}

// Find returns the catalog entry with the given title.
func Find(title string) (models.Transformation, bool) {
	for _, t := range Catalog {
		if t.Title == title {
			return t, true
		}
	}
	return models.Transformation{}, false
}
