package domain

// DefaultQuantity — количество, с которым товар попадает в корзину.
const DefaultQuantity = 1

// CartItem описывает позицию корзины: снимок продукта и количество.
type CartItem struct {
	Product
	Quantity int
}

func NewCartItem(product Product) CartItem {
	return CartItem{
		Product:  product,
		Quantity: DefaultQuantity,
	}
}
