package linebot

// EditingMessages is the reply sent as soon as a photo arrives.
func EditingMessages() []Message {
	return []Message{
		Sticker(EditingStickerPackage, EditingStickerID),
		Text(MsgEditing),
	}
}

// PhotoQuickReply offers the camera and the camera roll.
func PhotoQuickReply() *QuickReply {
	return &QuickReply{Items: []QuickReplyItem{
		{Type: "action", Action: Action{Type: "camera", Label: MsgQuickCamera}},
		{Type: "action", Action: Action{Type: "cameraRoll", Label: MsgQuickCameraRoll}},
	}}
}

// ResultCard links a converted image to its slideshow page.
func ResultCard(imageURL, slideshowURL string) FlexMessage {
	return imageCard(MsgHeroTitle, imageURL, slideshowURL)
}

// FoundCard answers a successful Codename lookup.
func FoundCard(imageURL, slideshowURL string) FlexMessage {
	return imageCard(MsgFoundTitle, imageURL, slideshowURL)
}

func imageCard(title, imageURL, slideshowURL string) FlexMessage {
	bubble := &FlexBubble{
		Type: "bubble",
		Hero: &FlexComponent{
			Type:        "image",
			URL:         imageURL,
			Size:        "full",
			AspectRatio: "4:3",
			AspectMode:  "cover",
		},
		Body: &FlexComponent{
			Type:            "box",
			Layout:          "vertical",
			BackgroundColor: colorDarkBG,
			Contents: []*FlexComponent{
				{Type: "text", Text: title, Weight: "bold", Size: "xl", Color: colorGreen},
				{Type: "separator", Margin: "md"},
				{Type: "text", Text: MsgSlideshowHint, Size: "sm", Color: colorGray400, Margin: "md", Wrap: true},
			},
		},
		Footer: &FlexComponent{
			Type:            "box",
			Layout:          "vertical",
			Spacing:         "sm",
			BackgroundColor: colorDarkBG,
			Contents: []*FlexComponent{
				{Type: "button", Style: "primary", Color: colorGreen, Action: URIAction(MsgSlideshowButton, slideshowURL)},
			},
		},
		Styles: darkStyles(),
	}
	return Flex("📸 画像をスライドショーで見る - "+BrandName, bubble)
}

// WelcomeCard greets a new friend and explains how to use the bot.
func WelcomeCard() FlexMessage {
	body := []*FlexComponent{
		{Type: "text", Text: MsgWelcomeTitle, Weight: "bold", Size: "xl", Color: colorGreen, Wrap: true},
		{Type: "text", Text: MsgWelcomeDescription, Size: "sm", Color: colorGray400, Margin: "md", Wrap: true},
		{Type: "separator", Margin: "lg"},
	}
	for _, step := range welcomeSteps {
		body = append(body, &FlexComponent{
			Type:   "box",
			Layout: "vertical",
			Margin: "lg",
			Contents: []*FlexComponent{
				{Type: "text", Text: step[0], Weight: "bold", Size: "md", Color: "#ffffff"},
				{Type: "text", Text: step[1], Size: "sm", Color: colorGray400, Wrap: true},
			},
		})
	}

	msg := Flex(MsgWelcomeTitle, &FlexBubble{
		Type: "bubble",
		Body: &FlexComponent{
			Type:            "box",
			Layout:          "vertical",
			BackgroundColor: colorDarkBG,
			Contents:        body,
		},
		Footer: &FlexComponent{
			Type:            "box",
			Layout:          "vertical",
			BackgroundColor: colorDarkBG,
			Contents: []*FlexComponent{
				{Type: "text", Text: MsgWelcomeFooter, Size: "sm", Color: colorGreen, Wrap: true},
			},
		},
		Styles: darkStyles(),
	})
	msg.QuickReply = PhotoQuickReply()
	return msg
}

func darkStyles() *BubbleStyles {
	return &BubbleStyles{
		Body:   &BlockStyle{BackgroundColor: colorDarkBG},
		Footer: &BlockStyle{BackgroundColor: colorDarkBG},
	}
}
